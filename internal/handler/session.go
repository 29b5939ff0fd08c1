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

// SessionHandler schedules sessions and edits the session property's
// financial settings.
type SessionHandler struct {
	Schedule *service.ScheduleService
	Sessions *repository.SessionRepo
	Events   *repository.EventRepo
	Friends  service.FriendshipChecker
}

type sessionReq struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
}

func (r sessionReq) input() service.SessionInput {
	return service.SessionInput{
		Title:       strings.TrimSpace(r.Title),
		Description: r.Description,
		Window:      service.Window{StartsAt: r.StartsAt.UTC(), EndsAt: r.EndsAt.UTC()},
	}
}

// financialReq sets how a session or workshop is charged.  A discount
// replaces the embedded one.
type financialReq struct {
	IsFree   bool         `json:"is_free"`
	Price    int64        `json:"price" validate:"gte=0"`
	Discount *discountReq `json:"discount"`
}

func (r financialReq) check() error {
	if !r.IsFree && r.Price <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "price must be greater than 0 unless is_free is set")
	}
	return nil
}

// embeddedDiscount builds and validates the discount of a financial
// settings request.  It returns nil when the request has none.
func (r financialReq) embeddedDiscount(event *model.Event, ownerID uint64, discountType string) (*model.Discount, error) {
	if r.Discount == nil {
		return nil, nil
	}
	d := r.Discount.toModel(event, ownerID, discountType)
	if err := service.ValidatePropertyDiscount(event, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Create schedules a session in ?event_id.
func (h *SessionHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := queryID(c, "event_id")
	if err != nil {
		return respondError(c, err)
	}
	var req sessionReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	s, err := h.Schedule.CreateSession(ctx, uid, eventID, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// List returns the sessions of ?event_id.
func (h *SessionHandler) List(c echo.Context) error {
	eventID, err := queryID(c, "event_id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	out, err := h.Sessions.ListByEvent(ctx, eventID)
	if err != nil {
		return respondError(c, err)
	}
	if out == nil {
		out = []*model.Session{}
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns :session_id when the caller may browse its event.
func (h *SessionHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "session_id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	out, err := service.VisibleSession(ctx, h.Events, h.Friends, h.Sessions, uid, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Update moves or edits :session_id.
func (h *SessionHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "session_id")
	if err != nil {
		return respondError(c, err)
	}
	var req sessionReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	s, err := h.Schedule.UpdateSession(ctx, uid, id, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Delete removes :session_id and gives its time back to the event.
func (h *SessionHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "session_id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Schedule.DeleteSession(ctx, uid, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetFinancial stores the financial settings of the session property
// of :event_id.
func (h *SessionHandler) SetFinancial(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "event_id")
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

	event, err := service.CheckEventAccess(ctx, h.Events, eventID, uid, false)
	if err != nil {
		return respondError(c, err)
	}
	if p := event.Property(model.PropertySession); p == nil || !p.Active {
		return respondError(c, fmt.Errorf("event does not have session: %w", service.ErrPropertyInactive))
	}
	d, err := req.embeddedDiscount(event, uid, model.DiscountSession)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Events.SetPropertyFinancial(ctx, eventID, model.PropertySession, req.IsFree, req.Price, d); err != nil {
		return respondError(c, err)
	}
	event, err = h.Events.GetByID(ctx, eventID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, event.Property(model.PropertySession))
}

// ClearDiscount removes the embedded discount of the session property.
func (h *SessionHandler) ClearDiscount(c echo.Context) error {
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
	if err := h.Events.ClearPropertyDiscount(ctx, eventID, model.PropertySession); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
