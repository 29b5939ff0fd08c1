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

// OperatorStore reads events and manages their operator links.
type OperatorStore interface {
	service.EventReader
	AddOperator(ctx context.Context, eventID, userID uint64, opType string) error
	RemoveOperator(ctx context.Context, eventID, userID uint64, opType string) error
}

// UserFinder looks a user up by email.
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// OperatorHandler manages the SPEAKER and TEACHER operators of an event.
// Owners and admins change them; anyone who may see the event can list
// them.
type OperatorHandler struct {
	Events  OperatorStore
	Users   UserFinder
	Friends service.FriendshipChecker
}

func (h *OperatorHandler) AddSpeaker(c echo.Context) error { return h.add(c, model.OperatorSpeaker) }
func (h *OperatorHandler) AddTeacher(c echo.Context) error { return h.add(c, model.OperatorTeacher) }

func (h *OperatorHandler) RemoveSpeaker(c echo.Context) error {
	return h.remove(c, model.OperatorSpeaker)
}

func (h *OperatorHandler) RemoveTeacher(c echo.Context) error {
	return h.remove(c, model.OperatorTeacher)
}

func (h *OperatorHandler) ListSpeakers(c echo.Context) error { return h.list(c, model.OperatorSpeaker) }
func (h *OperatorHandler) ListTeachers(c echo.Context) error { return h.list(c, model.OperatorTeacher) }

func (h *OperatorHandler) add(c echo.Context, opType string) error {
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

	if _, err := service.CheckEventAccess(ctx, h.Events, eventID, uid, false); err != nil {
		return respondError(c, err)
	}
	u, err := h.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Events.AddOperator(ctx, eventID, u.ID, opType); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, model.EventOperator{
		EventID: eventID, UserID: u.ID, Type: opType, Email: u.Email, CreatedAt: time.Now().UTC(),
	})
}

func (h *OperatorHandler) remove(c echo.Context, opType string) error {
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

	if _, err := service.CheckEventAccess(ctx, h.Events, eventID, uid, false); err != nil {
		return respondError(c, err)
	}
	if err := h.Events.RemoveOperator(ctx, eventID, req.UserID, opType); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *OperatorHandler) list(c echo.Context, opType string) error {
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
	ops, err := h.Events.ListOperators(ctx, eventID)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]model.EventOperator, 0, len(ops))
	for _, op := range ops {
		if op.Type == opType {
			out = append(out, op)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"operators": out, "count": len(out)})
}
