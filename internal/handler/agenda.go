package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/service"
)

// AgendaStore keeps the personal agenda of users per event.
type AgendaStore interface {
	Replace(ctx context.Context, userID, eventID uint64, items []model.AgendaItem) error
	List(ctx context.Context, userID, eventID uint64) ([]model.AgendaItem, error)
}

// AgendaHandler lets a user plan which parts of an event to attend.
type AgendaHandler struct {
	Agenda  AgendaStore
	Events  service.EventReader
	Friends service.FriendshipChecker
}

type agendaItemReq struct {
	ID          string     `json:"id" validate:"required,max=64"`
	Date        *time.Time `json:"date"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	Description string     `json:"description" validate:"max=1000"`
	OperatorIDs []uint64   `json:"operator_ids" validate:"max=20"`
}

type agendaReq struct {
	Items []agendaItemReq `json:"items" validate:"max=100,dive"`
}

// toModel checks item windows and ids, then converts the request.
func (r agendaReq) toModel() ([]model.AgendaItem, error) {
	out := make([]model.AgendaItem, 0, len(r.Items))
	seen := make(map[string]bool, len(r.Items))
	for _, it := range r.Items {
		id := strings.TrimSpace(it.ID)
		if id == "" {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "agenda item id is required")
		}
		if seen[id] {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "duplicate agenda item id: "+id)
		}
		seen[id] = true
		if it.StartsAt != nil && it.EndsAt != nil && !it.EndsAt.After(*it.StartsAt) {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "ends_at must be after starts_at for item "+id)
		}
		out = append(out, model.AgendaItem{
			ID:          id,
			Date:        utc(it.Date),
			StartsAt:    utc(it.StartsAt),
			EndsAt:      utc(it.EndsAt),
			Description: it.Description,
			OperatorIDs: it.OperatorIDs,
		})
	}
	return out, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// Replace stores the caller's agenda for :event_id, dropping the
// previous one.
func (h *AgendaHandler) Replace(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return respondError(c, err)
	}
	var req agendaReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	items, err := req.toModel()
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.visible(ctx, eventID, uid); err != nil {
		return respondError(c, err)
	}
	if err := h.Agenda.Replace(ctx, uid, eventID, items); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// List returns the caller's agenda for :event_id.
func (h *AgendaHandler) List(c echo.Context) error {
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

	if err := h.visible(ctx, eventID, uid); err != nil {
		return respondError(c, err)
	}
	items, err := h.Agenda.List(ctx, uid, eventID)
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []model.AgendaItem{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *AgendaHandler) visible(ctx context.Context, eventID, uid uint64) error {
	event, err := h.Events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	return service.CheckEventVisible(ctx, h.Events, h.Friends, event, uid)
}
