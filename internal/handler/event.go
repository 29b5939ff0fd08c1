package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/repository"
	"github.com/iliyamo/eventhub/internal/service"
)

// EventHandler serves event management and browsing endpoints.
type EventHandler struct {
	Events    *repository.EventRepo
	Sessions  *repository.SessionRepo
	Workshops *repository.WorkshopRepo
	Invoices  *repository.InvoiceRepo
	Friends   *repository.FriendshipRepo
	Users     *repository.UserRepo
}

type propertyReq struct {
	Active          bool  `json:"active"`
	MaxParticipants int   `json:"max_participants" validate:"gte=0"`
	Hours           int64 `json:"hours" validate:"gte=0"`
}

type createEventReq struct {
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description"`
	Category    string    `json:"category" validate:"max=100"`
	Privacy     string    `json:"privacy" validate:"omitempty,oneof=PUBLIC PRIVATE"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Properties  struct {
		Session  *propertyReq `json:"session"`
		Workshop *propertyReq `json:"workshop"`
	} `json:"properties"`
}

type updateEventReq struct {
	Name        *string    `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description"`
	Category    *string    `json:"category" validate:"omitempty,max=100"`
	Privacy     *string    `json:"privacy" validate:"omitempty,oneof=PUBLIC PRIVATE"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	IsPublished *bool      `json:"is_published"`
}

type costReq struct {
	Session  propertyReq `json:"session"`
	Workshop propertyReq `json:"workshop"`
}

type operatorReq struct {
	Email string `json:"email" validate:"required,email"`
}

type removeOperatorReq struct {
	UserID uint64 `json:"user_id" validate:"required"`
}

// toProperty converts a request property.  Active properties need at
// least one participant and one hour.
func toProperty(kind model.PropertyKind, p *propertyReq) (*model.EventProperty, error) {
	if p == nil {
		return &model.EventProperty{Kind: kind}, nil
	}
	if p.Active && (p.MaxParticipants < 1 || p.Hours < 1) {
		return nil, echo.NewHTTPError(http.StatusUnprocessableEntity,
			string(kind)+": an active property needs max_participants and hours of at least 1")
	}
	return &model.EventProperty{
		Kind:            kind,
		Active:          p.Active,
		MaxParticipants: p.MaxParticipants,
		TotalSeconds:    p.Hours * 3600,
	}, nil
}

// Create stores a new event owned by the caller.  Property hours are
// converted into a budget of seconds.
func (h *EventHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createEventReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	session, err := toProperty(model.PropertySession, req.Properties.Session)
	if err != nil {
		return respondError(c, err)
	}
	workshop, err := toProperty(model.PropertyWorkshop, req.Properties.Workshop)
	if err != nil {
		return respondError(c, err)
	}
	privacy := req.Privacy
	if privacy == "" {
		privacy = model.PrivacyPublic
	}
	e := &model.Event{
		OwnerID:     uid,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Category:    strings.TrimSpace(req.Category),
		Privacy:     privacy,
		StartsAt:    req.StartsAt.UTC(),
		EndsAt:      req.EndsAt.UTC(),
		Properties: map[model.PropertyKind]*model.EventProperty{
			model.PropertySession:  session,
			model.PropertyWorkshop: workshop,
		},
	}

	ctx, cancel := reqContext(c)
	defer cancel()
	if err := h.Events.Create(ctx, e); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

// Cost quotes the platform fee of an event before it is created.
func (h *EventHandler) Cost(c echo.Context) error {
	var req costReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	price := service.CalculateEventPrice(
		int64(req.Session.MaxParticipants), req.Session.Hours,
		int64(req.Workshop.MaxParticipants), req.Workshop.Hours,
	)
	return c.JSON(http.StatusOK, price)
}

// ListMine returns the events the caller owns.
func (h *EventHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	out, err := h.Events.ListByOwner(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListPublished pages through public events that have not ended.
func (h *EventHandler) ListPublished(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	out, err := h.Events.ListPublished(ctx, time.Now().UTC(), limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "limit": limit, "offset": offset})
}

// Get returns an event with its schedule.  Unpublished events are
// visible to their managers only; private ones also to users connected
// with the owner.
func (h *EventHandler) Get(c echo.Context) error {
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

	event, err := h.Events.GetByID(ctx, eventID)
	if err != nil {
		return respondError(c, err)
	}
	if err := service.CheckEventVisible(ctx, h.Events, h.Friends, event, uid); err != nil {
		return respondError(c, err)
	}

	sessions, err := h.Sessions.ListByEvent(ctx, eventID)
	if err != nil {
		return respondError(c, err)
	}
	workshops, err := h.Workshops.ListByEvent(ctx, eventID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"event": event, "sessions": sessions, "workshops": workshops})
}

// Update applies a partial update.  A new window must still contain
// every scheduled session and workshop.  Setting is_published runs the
// publish readiness check first.
func (h *EventHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return respondError(c, err)
	}
	var req updateEventReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	event, err := service.CheckEventAccess(ctx, h.Events, eventID, uid, false)
	if err != nil {
		return respondError(c, err)
	}
	if req.Name != nil {
		event.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Category != nil {
		event.Category = strings.TrimSpace(*req.Category)
	}
	if req.Privacy != nil {
		event.Privacy = *req.Privacy
	}
	windowChanged := req.StartsAt != nil || req.EndsAt != nil
	if req.StartsAt != nil {
		event.StartsAt = req.StartsAt.UTC()
	}
	if req.EndsAt != nil {
		event.EndsAt = req.EndsAt.UTC()
	}
	if !event.StartsAt.Before(event.EndsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be before ends_at"})
	}
	if windowChanged {
		start, end, ok, err := h.Events.ChildrenWindow(ctx, eventID)
		if err != nil {
			return respondError(c, err)
		}
		if ok && !event.Contains(start, end) {
			return respondError(c, service.ErrOutOfEventDuration)
		}
	}
	if req.IsPublished != nil && *req.IsPublished && !event.IsPublished {
		if err := h.publishReady(c, event); err != nil {
			return respondError(c, err)
		}
	}

	if err := h.Events.Update(ctx, event); err != nil {
		return respondError(c, err)
	}
	if req.IsPublished != nil && *req.IsPublished != event.IsPublished {
		if err := h.Events.SetPublished(ctx, eventID, *req.IsPublished); err != nil {
			return respondError(c, err)
		}
		event.IsPublished = *req.IsPublished
	}
	return c.JSON(http.StatusOK, event)
}

// Publish runs the readiness check and opens the event for
// registration.
func (h *EventHandler) Publish(c echo.Context) error {
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

	event, err := service.CheckEventAccess(ctx, h.Events, eventID, uid, false)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.publishReady(c, event); err != nil {
		return respondError(c, err)
	}
	if err := h.Events.SetPublished(ctx, eventID, true); err != nil {
		return respondError(c, err)
	}
	event.IsPublished = true
	return c.JSON(http.StatusOK, event)
}

func (h *EventHandler) publishReady(c echo.Context, event *model.Event) error {
	ctx, cancel := reqContext(c)
	defer cancel()
	workshops, err := h.Workshops.ListByEvent(ctx, event.ID)
	if err != nil {
		return err
	}
	return service.CheckEventPublishReady(event, workshops)
}

// Delete removes an event.  Only the owner may delete and events with
// invoices are kept.
func (h *EventHandler) Delete(c echo.Context) error {
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

	if _, err := service.CheckEventAccess(ctx, h.Events, eventID, uid, true); err != nil {
		return respondError(c, err)
	}
	if err := h.Events.Delete(ctx, eventID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AddAdmin makes the user with the given email an ADMIN operator.
func (h *EventHandler) AddAdmin(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return respondError(c, err)
	}
	var req operatorReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	event, err := service.CheckEventAccess(ctx, h.Events, eventID, uid, true)
	if err != nil {
		return respondError(c, err)
	}
	u, err := h.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return respondError(c, err)
	}
	if u.ID == event.OwnerID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "the owner is already managing this event"})
	}
	if err := h.Events.AddOperator(ctx, eventID, u.ID, model.OperatorAdmin); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, model.EventOperator{
		EventID: eventID, UserID: u.ID, Type: model.OperatorAdmin, Email: u.Email, CreatedAt: time.Now().UTC(),
	})
}

// ListAdmins returns the ADMIN operators of an event.
func (h *EventHandler) ListAdmins(c echo.Context) error {
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
	ops, err := h.Events.ListOperators(ctx, eventID)
	if err != nil {
		return respondError(c, err)
	}
	admins := make([]model.EventOperator, 0, len(ops))
	for _, op := range ops {
		if op.Type == model.OperatorAdmin {
			admins = append(admins, op)
		}
	}
	return c.JSON(http.StatusOK, admins)
}

// RemoveAdmin revokes an ADMIN operator.  Owner only.
func (h *EventHandler) RemoveAdmin(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return respondError(c, err)
	}
	var req removeOperatorReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	if _, err := service.CheckEventAccess(ctx, h.Events, eventID, uid, true); err != nil {
		return respondError(c, err)
	}
	if err := h.Events.RemoveOperator(ctx, eventID, req.UserID, model.OperatorAdmin); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Participants lists the buyers of an event for its managers.
func (h *EventHandler) Participants(c echo.Context) error {
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
	out, err := h.Invoices.ListParticipants(ctx, eventID)
	if err != nil {
		return respondError(c, err)
	}
	if out == nil {
		out = []*repository.Participant{}
	}
	return c.JSON(http.StatusOK, out)
}
