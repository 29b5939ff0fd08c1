package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/repository"
)

// CheckEventAccess loads the event and verifies that userID may manage
// it.  With onlyOwner set, ADMIN operators are refused as well.
func CheckEventAccess(ctx context.Context, events EventReader, eventID, userID uint64, onlyOwner bool) (*model.Event, error) {
	event, err := events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OwnerID == userID {
		return event, nil
	}
	if onlyOwner {
		return nil, ErrForbidden
	}
	isAdmin, err := IsEventAdmin(ctx, events, event, userID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, ErrForbidden
	}
	return event, nil
}

// IsEventAdmin reports whether userID is an ADMIN operator of event.
func IsEventAdmin(ctx context.Context, events EventReader, event *model.Event, userID uint64) (bool, error) {
	ops, err := events.ListOperators(ctx, event.ID)
	if err != nil {
		return false, fmt.Errorf("list operators: %w", err)
	}
	for _, op := range ops {
		if op.UserID == userID && op.Type == model.OperatorAdmin {
			return true, nil
		}
	}
	return false, nil
}

// CheckEventVisible verifies that userID may browse event.  Managers
// always may.  Anyone else needs it published and, for a private event, a
// connection with the owner.
func CheckEventVisible(ctx context.Context, events EventReader, friends FriendshipChecker, event *model.Event, userID uint64) error {
	if event.OwnerID == userID {
		return nil
	}
	isAdmin, err := IsEventAdmin(ctx, events, event, userID)
	if err != nil {
		return err
	}
	if isAdmin {
		return nil
	}
	if !event.IsPublished {
		return repository.ErrEventNotFound
	}
	if event.Privacy != model.PrivacyPrivate {
		return nil
	}
	ok, err := friends.AreConnected(ctx, userID, event.OwnerID)
	if err != nil {
		return fmt.Errorf("check connection: %w", err)
	}
	if !ok {
		return ErrNoEventAccess
	}
	return nil
}

// VisibleSession loads a session whose event userID may browse.
func VisibleSession(ctx context.Context, events EventReader, friends FriendshipChecker, sessions SessionGetter, userID, id uint64) (*model.Session, error) {
	s, err := sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVisibleByID(ctx, events, friends, s.EventID, userID); err != nil {
		return nil, err
	}
	return s, nil
}

// VisibleWorkshop loads a workshop whose event userID may browse.
func VisibleWorkshop(ctx context.Context, events EventReader, friends FriendshipChecker, workshops WorkshopGetter, userID, id uint64) (*model.Workshop, error) {
	w, err := workshops.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVisibleByID(ctx, events, friends, w.EventID, userID); err != nil {
		return nil, err
	}
	return w, nil
}

func checkVisibleByID(ctx context.Context, events EventReader, friends FriendshipChecker, eventID, userID uint64) error {
	event, err := events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	return CheckEventVisible(ctx, events, friends, event, userID)
}

// CheckEventPublishReady verifies an event can be published: every
// active property has at least one scheduled child and complete
// financial settings, and every workshop is either free or priced.
func CheckEventPublishReady(event *model.Event, workshops []*model.Workshop) error {
	if session := event.Property(model.PropertySession); isActive(session) {
		if session.RemainingSeconds == session.TotalSeconds {
			return fmt.Errorf("%w: no session is scheduled", ErrEventNotReady)
		}
		if !priced(session.Financial) {
			return fmt.Errorf("%w: session financial settings are incomplete", ErrEventNotReady)
		}
	}
	if workshop := event.Property(model.PropertyWorkshop); isActive(workshop) {
		if workshop.RemainingSeconds == workshop.TotalSeconds {
			return fmt.Errorf("%w: no workshop is scheduled", ErrEventNotReady)
		}
		for _, ws := range workshops {
			if !priced(ws.Financial) {
				return fmt.Errorf("%w: workshop %d financial settings are incomplete", ErrEventNotReady, ws.ID)
			}
		}
	}
	return nil
}

func priced(fs *model.FinancialSettings) bool {
	if fs == nil {
		return false
	}
	return fs.IsFree || fs.Price > 0
}
