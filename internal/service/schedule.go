package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/repository"
)

// ScheduleService creates, moves and removes sessions and workshops
// while keeping the time budget of their event property consistent.
type ScheduleService struct {
	Events    EventReader
	Sessions  SessionGetter
	Workshops WorkshopGetter
	Store     ScheduleStore
}

// SessionInput carries the editable fields of a session.
type SessionInput struct {
	Title       string
	Description string
	Window      Window
}

// WorkshopInput carries the editable fields of a workshop.
type WorkshopInput struct {
	Title       string
	Description string
	Capacity    int
	Window      Window
}

// CreateSession schedules a session and consumes its duration.
func (s *ScheduleService) CreateSession(ctx context.Context, actorID, eventID uint64, in SessionInput) (*model.Session, error) {
	ctx, span := tracer.Start(ctx, "ScheduleService.CreateSession")
	defer span.End()
	span.SetAttributes(attribute.Int64("event.id", int64(eventID)))

	event, err := s.managedEvent(ctx, eventID, actorID, model.PropertySession)
	if err != nil {
		return nil, err
	}
	sess := &model.Session{
		EventID:     eventID,
		Title:       in.Title,
		Description: in.Description,
		StartsAt:    in.Window.StartsAt,
		EndsAt:      in.Window.EndsAt,
	}
	err = s.Store.RunInTx(ctx, func(w repository.ScheduleWriter) error {
		if err := consume(ctx, w, event, model.PropertySession, in.Window, 0); err != nil {
			return err
		}
		return w.CreateSession(ctx, sess)
	})
	if err != nil {
		return nil, mapBudgetErr(model.PropertySession, err)
	}
	return sess, nil
}

// UpdateSession moves or resizes a session.  The duration given back is
// the one stored when the row is locked, not the one read before.
func (s *ScheduleService) UpdateSession(ctx context.Context, actorID, sessionID uint64, in SessionInput) (*model.Session, error) {
	sess, err := s.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	event, err := s.managedEvent(ctx, sess.EventID, actorID, model.PropertySession)
	if err != nil {
		return nil, err
	}
	var updated model.Session
	err = s.Store.RunInTx(ctx, func(w repository.ScheduleWriter) error {
		cur, err := w.LockSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := consume(ctx, w, event, model.PropertySession, in.Window, cur.Duration()); err != nil {
			return err
		}
		updated = *cur
		updated.Title = in.Title
		updated.Description = in.Description
		updated.StartsAt = in.Window.StartsAt
		updated.EndsAt = in.Window.EndsAt
		return w.UpdateSession(ctx, &updated)
	})
	if err != nil {
		return nil, mapBudgetErr(model.PropertySession, err)
	}
	return &updated, nil
}

// DeleteSession removes a session and restores its duration.
func (s *ScheduleService) DeleteSession(ctx context.Context, actorID, sessionID uint64) error {
	sess, err := s.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, err := CheckEventAccess(ctx, s.Events, sess.EventID, actorID, false); err != nil {
		return err
	}
	return s.Store.RunInTx(ctx, func(w repository.ScheduleWriter) error {
		cur, err := w.LockSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := w.DeleteSession(ctx, cur.ID); err != nil {
			return err
		}
		return restore(ctx, w, cur.EventID, model.PropertySession, cur.Duration())
	})
}

// CreateWorkshop schedules a workshop and consumes its duration.
func (s *ScheduleService) CreateWorkshop(ctx context.Context, actorID, eventID uint64, in WorkshopInput) (*model.Workshop, error) {
	ctx, span := tracer.Start(ctx, "ScheduleService.CreateWorkshop")
	defer span.End()
	span.SetAttributes(attribute.Int64("event.id", int64(eventID)))

	event, err := s.managedEvent(ctx, eventID, actorID, model.PropertyWorkshop)
	if err != nil {
		return nil, err
	}
	ws := &model.Workshop{
		EventID:     eventID,
		Title:       in.Title,
		Description: in.Description,
		Capacity:    in.Capacity,
		StartsAt:    in.Window.StartsAt,
		EndsAt:      in.Window.EndsAt,
	}
	err = s.Store.RunInTx(ctx, func(w repository.ScheduleWriter) error {
		if err := consume(ctx, w, event, model.PropertyWorkshop, in.Window, 0); err != nil {
			return err
		}
		return w.CreateWorkshop(ctx, ws)
	})
	if err != nil {
		return nil, mapBudgetErr(model.PropertyWorkshop, err)
	}
	return ws, nil
}

// UpdateWorkshop moves or resizes a workshop.
func (s *ScheduleService) UpdateWorkshop(ctx context.Context, actorID, workshopID uint64, in WorkshopInput) (*model.Workshop, error) {
	ws, err := s.Workshops.GetByID(ctx, workshopID)
	if err != nil {
		return nil, err
	}
	event, err := s.managedEvent(ctx, ws.EventID, actorID, model.PropertyWorkshop)
	if err != nil {
		return nil, err
	}
	var updated model.Workshop
	err = s.Store.RunInTx(ctx, func(w repository.ScheduleWriter) error {
		cur, err := w.LockWorkshop(ctx, workshopID)
		if err != nil {
			return err
		}
		if err := consume(ctx, w, event, model.PropertyWorkshop, in.Window, cur.Duration()); err != nil {
			return err
		}
		updated = *cur
		updated.Financial = ws.Financial
		updated.Title = in.Title
		updated.Description = in.Description
		updated.Capacity = in.Capacity
		updated.StartsAt = in.Window.StartsAt
		updated.EndsAt = in.Window.EndsAt
		return w.UpdateWorkshop(ctx, &updated)
	})
	if err != nil {
		return nil, mapBudgetErr(model.PropertyWorkshop, err)
	}
	return &updated, nil
}

// DeleteWorkshop removes a workshop and restores its duration.
// Workshops with participants are kept.
func (s *ScheduleService) DeleteWorkshop(ctx context.Context, actorID, workshopID uint64) error {
	ws, err := s.Workshops.GetByID(ctx, workshopID)
	if err != nil {
		return err
	}
	if _, err := CheckEventAccess(ctx, s.Events, ws.EventID, actorID, false); err != nil {
		return err
	}
	return s.Store.RunInTx(ctx, func(w repository.ScheduleWriter) error {
		cur, err := w.LockWorkshop(ctx, workshopID)
		if err != nil {
			return err
		}
		if cur.ParticipantCount > 0 {
			return repository.ErrConflict
		}
		if err := w.DeleteWorkshop(ctx, cur.ID); err != nil {
			return err
		}
		return restore(ctx, w, cur.EventID, model.PropertyWorkshop, cur.Duration())
	})
}

// consume checks the window against the locked property and takes the
// difference from its budget.  plusTime is the duration being replaced.
func consume(ctx context.Context, w repository.ScheduleWriter, event *model.Event, kind model.PropertyKind, win Window, plusTime int64) error {
	p, err := w.LockProperty(ctx, event.ID, kind)
	if err != nil {
		return err
	}
	delta, err := CheckAndCalculateTime(withProperty(event, kind, p), win, kind, plusTime)
	if err != nil {
		return err
	}
	return w.ConsumeSeconds(ctx, event.ID, kind, delta)
}

func restore(ctx context.Context, w repository.ScheduleWriter, eventID uint64, kind model.PropertyKind, seconds int64) error {
	p, err := w.LockProperty(ctx, eventID, kind)
	if err != nil {
		return err
	}
	return w.SetRemainingSeconds(ctx, eventID, kind, RestoreSeconds(p, seconds))
}

// withProperty returns a shallow copy of event carrying p as its
// property of the given kind.
func withProperty(event *model.Event, kind model.PropertyKind, p *model.EventProperty) *model.Event {
	view := *event
	view.Properties = make(map[model.PropertyKind]*model.EventProperty, len(event.Properties)+1)
	for k, v := range event.Properties {
		view.Properties[k] = v
	}
	view.Properties[kind] = p
	return &view
}

// managedEvent loads the event for an owner or admin and requires the
// property to accept children.
func (s *ScheduleService) managedEvent(ctx context.Context, eventID, actorID uint64, kind model.PropertyKind) (*model.Event, error) {
	event, err := CheckEventAccess(ctx, s.Events, eventID, actorID, false)
	if err != nil {
		return nil, err
	}
	if !isActive(event.Property(kind)) {
		return nil, fmt.Errorf("event does not have %s: %w", kind, ErrPropertyInactive)
	}
	return event, nil
}

// mapBudgetErr turns a lost conditional update into the same error the
// accountant reports.
func mapBudgetErr(kind model.PropertyKind, err error) error {
	if errors.Is(err, repository.ErrBudgetExceeded) {
		return fmt.Errorf("cannot schedule %s: %w", kind, ErrNotEnoughTime)
	}
	return err
}
