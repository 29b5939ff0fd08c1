package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/repository"
	"github.com/iliyamo/eventhub/internal/service"
)

// CodeValidator checks a client's discount code.
type CodeValidator interface {
	ValidateCode(ctx context.Context, code string, eventID uint64) (service.CodeDiscount, error)
}

// DiscountHandler manages CODE and CAMPAIGN discounts of an event and
// lets clients check a code before registering.
type DiscountHandler struct {
	Events    *repository.EventRepo
	Discounts *repository.DiscountRepo
	Validator CodeValidator
}

// discountReq is shared by event-level and embedded discounts.  Without
// use_date_interval the discount is valid for the whole event.
type discountReq struct {
	Type            string     `json:"type" validate:"omitempty,oneof=CODE CAMPAIGN"`
	Name            string     `json:"name" validate:"required,max=200"`
	Code            string     `json:"code" validate:"omitempty,max=64"`
	Amount          int64      `json:"amount" validate:"gte=0"`
	AmountType      string     `json:"amount_type" validate:"required,oneof=AMOUNT PERCENTAGE"`
	UseDateInterval bool       `json:"use_date_interval"`
	StartsAt        *time.Time `json:"starts_at"`
	EndsAt          *time.Time `json:"ends_at"`
	UseCount        bool       `json:"use_count"`
	Count           int        `json:"count" validate:"gte=0"`
}

func (r discountReq) toModel(event *model.Event, ownerID uint64, discountType string) *model.Discount {
	d := &model.Discount{
		EventID:    event.ID,
		OwnerID:    ownerID,
		Type:       discountType,
		Name:       strings.TrimSpace(r.Name),
		Code:       strings.TrimSpace(r.Code),
		Amount:     r.Amount,
		AmountType: r.AmountType,
		StartsAt:   event.StartsAt,
		EndsAt:     event.EndsAt,
		UseCount:   r.UseCount,
	}
	if r.UseCount {
		d.MaxCount = r.Count
	}
	if r.UseDateInterval {
		if r.StartsAt != nil {
			d.StartsAt = r.StartsAt.UTC()
		}
		if r.EndsAt != nil {
			d.EndsAt = r.EndsAt.UTC()
		}
	}
	return d
}

type patchDiscountReq struct {
	Name     *string    `json:"name" validate:"omitempty,min=1,max=200"`
	Amount   *int64     `json:"amount" validate:"omitempty,gte=0"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	UseCount *bool      `json:"use_count"`
	Count    *int       `json:"count" validate:"omitempty,gte=0"`
}

type validateCodeReq struct {
	Code string `json:"code" validate:"required,max=64"`
}

// Create stores a CODE or CAMPAIGN discount after checking it against
// the event.
func (h *DiscountHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return respondError(c, err)
	}
	var req discountReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	if req.Type == "" {
		req.Type = model.DiscountCode
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	event, err := service.CheckEventAccess(ctx, h.Events, eventID, uid, false)
	if err != nil {
		return respondError(c, err)
	}
	d := req.toModel(event, uid, req.Type)
	if err := service.ValidateCreateDiscount(event, d); err != nil {
		return respondError(c, err)
	}
	if err := h.Discounts.Create(ctx, d); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

// List returns the event's discounts of ?type (CODE by default).
func (h *DiscountHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return respondError(c, err)
	}
	discountType := strings.ToUpper(c.QueryParam("type"))
	switch discountType {
	case "":
		discountType = model.DiscountCode
	case model.DiscountCode, model.DiscountCampaign:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "type must be CODE or CAMPAIGN"})
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	if _, err := service.CheckEventAccess(ctx, h.Events, eventID, uid, false); err != nil {
		return respondError(c, err)
	}
	out, err := h.Discounts.ListByType(ctx, eventID, discountType)
	if err != nil {
		return respondError(c, err)
	}
	if out == nil {
		out = []*model.Discount{}
	}
	return c.JSON(http.StatusOK, out)
}

// CodeAvailable answers true when :code is still free inside the event.
func (h *DiscountHandler) CodeAvailable(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	if _, err := service.CheckEventAccess(ctx, h.Events, eventID, uid, false); err != nil {
		return respondError(c, err)
	}
	exists, err := h.Discounts.CodeExists(ctx, eventID, c.Param("code"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, !exists)
}

// Update patches the CODE discount :code.
func (h *DiscountHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return respondError(c, err)
	}
	var req patchDiscountReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	event, err := service.CheckEventAccess(ctx, h.Events, eventID, uid, false)
	if err != nil {
		return respondError(c, err)
	}
	d, err := h.Discounts.GetByCode(ctx, eventID, model.DiscountCode, c.Param("code"))
	if err != nil {
		return respondError(c, err)
	}
	patch := repository.DiscountPatch{
		Name:     req.Name,
		Amount:   req.Amount,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		UseCount: req.UseCount,
		MaxCount: req.Count,
	}
	patch.Apply(d)
	if !d.UseCount {
		d.MaxCount = 0
	}
	if err := service.ValidateCreateDiscount(event, d); err != nil {
		return respondError(c, err)
	}
	if err := h.Discounts.Update(ctx, d); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Delete removes the CODE discount :code.
func (h *DiscountHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	if _, err := service.CheckEventAccess(ctx, h.Events, eventID, uid, false); err != nil {
		return respondError(c, err)
	}
	d, err := h.Discounts.GetByCode(ctx, eventID, model.DiscountCode, c.Param("code"))
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Discounts.Delete(ctx, d.ID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ValidateCode tells a client whether a code applies to the event and
// what it is worth.
func (h *DiscountHandler) ValidateCode(c echo.Context) error {
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return respondError(c, err)
	}
	var req validateCodeReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	out, err := h.Validator.ValidateCode(ctx, strings.TrimSpace(req.Code), eventID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
