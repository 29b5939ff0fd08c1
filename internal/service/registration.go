package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/queue"
	"github.com/iliyamo/eventhub/internal/repository"
)

var tracer = otel.Tracer("github.com/iliyamo/eventhub/internal/service")

// RegistrationRequest is a client's purchase of event properties.
type RegistrationRequest struct {
	UserID       uint64
	EventID      uint64
	Session      bool
	WorkshopIDs  []uint64
	DiscountCode string
}

// RegistrationService builds invoices for event registrations and
// persists them together with every counter they affect.
type RegistrationService struct {
	Users     UserGetter
	Events    EventReader
	Workshops WorkshopLister
	Friends   FriendshipChecker
	Invoices  InvoiceLister
	Discounts *DiscountService
	Store     RegistrationStore
	Publisher RegistrationPublisher // optional
	Log       *zap.Logger
	Now       func() time.Time
}

func (s *RegistrationService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *RegistrationService) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// Register validates the request, prices it and stores the invoice.
//
// The already-purchased check reads invoices before the write
// transaction starts, so two concurrent submissions of the same
// purchase can both pass it.
func (s *RegistrationService) Register(ctx context.Context, req RegistrationRequest) (*model.Invoice, error) {
	ctx, span := tracer.Start(ctx, "RegistrationService.Register")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("event.id", int64(req.EventID)),
		attribute.Int64("user.id", int64(req.UserID)),
		attribute.Bool("registration.session", req.Session),
		attribute.Int("registration.workshops", len(req.WorkshopIDs)),
	)

	inv, err := s.register(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("invoice.total_cost", inv.TotalCost))
	return inv, nil
}

func (s *RegistrationService) register(ctx context.Context, req RegistrationRequest) (*model.Invoice, error) {
	workshopIDs := dedupe(req.WorkshopIDs)
	if !req.Session && len(workshopIDs) == 0 {
		return nil, ErrNothingToBuy
	}
	now := s.now()

	user, err := s.Users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	event, err := s.Events.GetByID(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	// access & timing
	if user.Role == model.RoleAdmin || event.OwnerID == user.ID {
		return nil, ErrAdminCannotRegister
	}
	isAdmin, err := IsEventAdmin(ctx, s.Events, event, user.ID)
	if err != nil {
		return nil, err
	}
	if isAdmin {
		return nil, ErrAdminCannotRegister
	}
	if !(event.StartsAt.Before(now) && now.Before(event.EndsAt)) || !event.IsPublished {
		return nil, ErrEventNotOpen
	}
	if event.Privacy == model.PrivacyPrivate {
		ok, err := s.Friends.AreConnected(ctx, user.ID, event.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("check connection: %w", err)
		}
		if !ok {
			return nil, ErrNoEventAccess
		}
	}

	// requested properties
	session := event.Property(model.PropertySession)
	if req.Session && !isActive(session) {
		return nil, fmt.Errorf("event does not have session: %w", ErrPropertyInactive)
	}
	var buying []*model.Workshop
	if len(workshopIDs) > 0 {
		if !isActive(event.Property(model.PropertyWorkshop)) {
			return nil, fmt.Errorf("event does not have workshop: %w", ErrPropertyInactive)
		}
		all, err := s.Workshops.ListByEvent(ctx, event.ID)
		if err != nil {
			return nil, fmt.Errorf("list workshops: %w", err)
		}
		byID := make(map[uint64]*model.Workshop, len(all))
		for _, ws := range all {
			byID[ws.ID] = ws
		}
		for _, id := range workshopIDs {
			ws, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("workshop %d: %w", id, ErrWorkshopNotInEvent)
			}
			buying = append(buying, ws)
		}
	}

	if err := s.checkNotPurchased(ctx, user.ID, event.ID, req.Session, workshopIDs); err != nil {
		return nil, err
	}

	inv := &model.Invoice{
		Reference: uuid.NewString(),
		Type:      model.InvoiceEventParticipant,
		Owner:     user.InvoiceOwner(),
		EventID:   event.ID,
		EventName: event.Name,
		IsPaid:    true,
		CreatedAt: now,
	}
	var discountIDs, discountedWorkshops []uint64

	if req.Session {
		pc, err := CalculatePropertyCost(session.Financial, now)
		if err != nil {
			return nil, err
		}
		item := pc.Item(model.PropertySession, nil)
		inv.Session = &item
		inv.TotalCost += pc.Cost
		if pc.IncreaseUsageCount {
			discountIDs = append(discountIDs, *pc.DiscountID)
		}
	}
	if len(buying) > 0 {
		wi, err := CalculateWorkshopsInvoice(buying, now)
		if err != nil {
			return nil, err
		}
		inv.Workshops = wi.Items
		inv.TotalCost += wi.TotalCost
		discountIDs = append(discountIDs, wi.DiscountIDs...)
		discountedWorkshops = wi.DiscountedWorkshopIDs
	}

	d, err := s.Discounts.ForInvoice(ctx, event.ID, req.DiscountCode)
	if err != nil {
		return nil, err
	}
	if d != nil {
		ApplyInvoiceDiscount(inv, d)
		if d.UseCount {
			discountIDs = append(discountIDs, d.ID)
		}
	}
	inv.IsFree = inv.TotalCost == 0

	err = s.Store.RunInTx(ctx, func(w repository.RegistrationWriter) error {
		if err := w.InsertInvoice(ctx, inv); err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		if req.Session {
			if err := w.IncrementPropertyParticipants(ctx, event.ID, model.PropertySession); err != nil {
				return err
			}
		}
		if len(workshopIDs) > 0 {
			if err := w.IncrementPropertyParticipants(ctx, event.ID, model.PropertyWorkshop); err != nil {
				return err
			}
			if err := w.IncrementWorkshopParticipants(ctx, workshopIDs); err != nil {
				return err
			}
		}
		for _, id := range discountIDs {
			if err := w.IncrementDiscountUsage(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDiscountExhausted):
			return nil, ErrDiscountExpired
		case errors.Is(err, repository.ErrCapacityExceeded):
			return nil, ErrSoldOut
		}
		return nil, err
	}

	s.log().Info("registration completed",
		zap.String("reference", inv.Reference),
		zap.Uint64("invoice_id", inv.ID),
		zap.Uint64("event_id", event.ID),
		zap.Uint64("user_id", user.ID),
		zap.Int64("total_cost", inv.TotalCost),
		zap.Uint64s("discounted_workshop_ids", discountedWorkshops),
	)
	s.publish(ctx, inv, discountedWorkshops)
	return inv, nil
}

func (s *RegistrationService) checkNotPurchased(ctx context.Context, userID, eventID uint64, session bool, workshopIDs []uint64) error {
	invoices, err := s.Invoices.ListSettled(ctx, userID, eventID)
	if err != nil {
		return fmt.Errorf("list invoices: %w", err)
	}
	owned := make(map[uint64]bool)
	bought := &AlreadyPurchasedError{Workshops: []uint64{}}
	for _, inv := range invoices {
		if session && inv.Session != nil {
			bought.Session = true
		}
		for _, id := range inv.WorkshopIDs() {
			owned[id] = true
		}
	}
	for _, id := range workshopIDs {
		if owned[id] {
			bought.Workshops = append(bought.Workshops, id)
		}
	}
	if bought.Session || len(bought.Workshops) > 0 {
		return bought
	}
	return nil
}

func (s *RegistrationService) publish(ctx context.Context, inv *model.Invoice, discountedWorkshops []uint64) {
	if s.Publisher == nil {
		return
	}
	ev := queue.RegistrationCompletedEvent{
		InvoiceID:             inv.ID,
		Reference:             inv.Reference,
		UserID:                inv.Owner.ID,
		UserEmail:             inv.Owner.Email,
		EventID:               inv.EventID,
		EventName:             inv.EventName,
		Session:               inv.Session != nil,
		WorkshopIDs:           inv.WorkshopIDs(),
		DiscountedWorkshopIDs: discountedWorkshops,
		TotalCost:             inv.TotalCost,
		IsFree:                inv.IsFree,
		CompletedAt:           inv.CreatedAt.Format(time.RFC3339),
	}
	if inv.Discount != nil {
		ev.DiscountID = &inv.Discount.ID
	}
	if err := s.Publisher.PublishRegistrationCompleted(ctx, ev); err != nil {
		s.log().Warn("publish registration.completed failed", zap.String("reference", inv.Reference), zap.Error(err))
	}
}

func dedupe(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
