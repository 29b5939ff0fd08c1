package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/repository"
	"github.com/iliyamo/eventhub/internal/service"
)

// WorkshopHandler schedules workshops and edits their financial
// settings.
type WorkshopHandler struct {
	Schedule  *service.ScheduleService
	Workshops *repository.WorkshopRepo
	Events    *repository.EventRepo
	Friends   service.FriendshipChecker
}

type workshopReq struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description"`
	Capacity    int       `json:"capacity" validate:"gte=0"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
}

func (r workshopReq) input() service.WorkshopInput {
	return service.WorkshopInput{
		Title:       strings.TrimSpace(r.Title),
		Description: r.Description,
		Capacity:    r.Capacity,
		Window:      service.Window{StartsAt: r.StartsAt.UTC(), EndsAt: r.EndsAt.UTC()},
	}
}

// Create schedules a workshop in ?event_id.
func (h *WorkshopHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := queryID(c, "event_id")
	if err != nil {
		return respondError(c, err)
	}
	var req workshopReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	ws, err := h.Schedule.CreateWorkshop(ctx, uid, eventID, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, ws)
}

// List returns the workshops of ?event_id with their financial
// settings.
func (h *WorkshopHandler) List(c echo.Context) error {
	eventID, err := queryID(c, "event_id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	out, err := h.Workshops.ListByEvent(ctx, eventID)
	if err != nil {
		return respondError(c, err)
	}
	if out == nil {
		out = []*model.Workshop{}
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns :workshop_id when the caller may browse its event.
func (h *WorkshopHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "workshop_id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	out, err := service.VisibleWorkshop(ctx, h.Events, h.Friends, h.Workshops, uid, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Update moves or edits :workshop_id.
func (h *WorkshopHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "workshop_id")
	if err != nil {
		return respondError(c, err)
	}
	var req workshopReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	ws, err := h.Schedule.UpdateWorkshop(ctx, uid, id, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ws)
}

// Delete removes :workshop_id when nobody bought it.
func (h *WorkshopHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "workshop_id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Schedule.DeleteWorkshop(ctx, uid, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetFinancial stores the financial settings of :workshop_id.
func (h *WorkshopHandler) SetFinancial(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "workshop_id")
	if err != nil {
		return respondError(c, err)
	}
	var req financialReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	if err := req.check(); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	ws, err := h.Workshops.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	event, err := service.CheckEventAccess(ctx, h.Events, ws.EventID, uid, false)
	if err != nil {
		return respondError(c, err)
	}
	if p := event.Property(model.PropertyWorkshop); p == nil || !p.Active {
		return respondError(c, fmt.Errorf("event does not have workshop: %w", service.ErrPropertyInactive))
	}
	d, err := req.embeddedDiscount(event, uid, model.DiscountWorkshop)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Workshops.SetFinancial(ctx, id, req.IsFree, req.Price, d); err != nil {
		return respondError(c, err)
	}
	ws, err = h.Workshops.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ws)
}

// ClearDiscount removes the embedded discount of :workshop_id.
func (h *WorkshopHandler) ClearDiscount(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "workshop_id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	ws, err := h.Workshops.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if _, err := service.CheckEventAccess(ctx, h.Events, ws.EventID, uid, false); err != nil {
		return respondError(c, err)
	}
	if err := h.Workshops.ClearDiscount(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
