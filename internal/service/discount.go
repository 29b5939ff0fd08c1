package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/repository"
)

// CodeDiscount is what a client learns about a valid discount code.
type CodeDiscount struct {
	AmountType string `json:"amount_type"`
	Amount     int64  `json:"amount"`
}

// DiscountService validates discounts against the clock.
type DiscountService struct {
	Discounts DiscountFinder
	Now       func() time.Time
}

// NewDiscountService returns a DiscountService using the wall clock.
func NewDiscountService(d DiscountFinder) *DiscountService {
	return &DiscountService{Discounts: d, Now: time.Now}
}

func (s *DiscountService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// ValidateCode checks a CODE discount of the event and returns its
// amount.  Usage is not counted here; the registration that applies
// the code does that.
func (s *DiscountService) ValidateCode(ctx context.Context, code string, eventID uint64) (CodeDiscount, error) {
	d, err := s.lookupCode(ctx, eventID, code)
	if err != nil {
		return CodeDiscount{}, err
	}
	return CodeDiscount{AmountType: d.AmountType, Amount: d.Amount}, nil
}

// ForInvoice picks the invoice-level discount.  A code selects a CODE
// discount and must be valid.  Without a code the first usable CAMPAIGN
// discount of the event applies; when none is usable the invoice stays
// undiscounted.
func (s *DiscountService) ForInvoice(ctx context.Context, eventID uint64, code string) (*model.Discount, error) {
	if code != "" {
		return s.lookupCode(ctx, eventID, code)
	}
	campaigns, err := s.Discounts.ListByType(ctx, eventID, model.DiscountCampaign)
	if err != nil {
		return nil, fmt.Errorf("list campaign discounts: %w", err)
	}
	now := s.now()
	for _, d := range campaigns {
		if d.Usable(now) {
			return d, nil
		}
	}
	return nil, nil
}

func (s *DiscountService) lookupCode(ctx context.Context, eventID uint64, code string) (*model.Discount, error) {
	d, err := s.Discounts.GetByCode(ctx, eventID, model.DiscountCode, code)
	if err != nil {
		if errors.Is(err, repository.ErrDiscountNotFound) {
			return nil, ErrDiscountNotFound
		}
		return nil, fmt.Errorf("get discount: %w", err)
	}
	if !d.Usable(s.now()) {
		return nil, ErrDiscountExpired
	}
	return d, nil
}

// ApplyInvoiceDiscount reduces the invoice total by d and snapshots it.
func ApplyInvoiceDiscount(inv *model.Invoice, d *model.Discount) {
	inv.TotalCost = ApplyDiscount(inv.TotalCost, d.AmountType, d.Amount)
	inv.Discount = d.Snapshot()
}

// ValidateCreateDiscount checks a new CODE or CAMPAIGN discount against
// its event: the event must have an active property, a usage cap may
// not exceed the combined participant ceiling and the validity window
// must lie inside the event window.
func ValidateCreateDiscount(event *model.Event, d *model.Discount) error {
	if err := validateDiscountShape(d); err != nil {
		return err
	}
	session := event.Property(model.PropertySession)
	workshop := event.Property(model.PropertyWorkshop)
	if session == nil && workshop == nil {
		return fmt.Errorf("%w: event configuration is not complete", ErrInvalidDiscount)
	}
	if !isActive(session) && !isActive(workshop) {
		return fmt.Errorf("%w: event has no active property", ErrInvalidDiscount)
	}
	if d.UseCount {
		var ceiling int
		if session != nil {
			ceiling += session.MaxParticipants
		}
		if workshop != nil {
			ceiling += workshop.MaxParticipants
		}
		if d.MaxCount > ceiling {
			return fmt.Errorf("%w: count can not be greater than the sum of event properties max_participants", ErrInvalidDiscount)
		}
	}
	if d.StartsAt.Before(event.StartsAt) || d.EndsAt.After(event.EndsAt) {
		return fmt.Errorf("%w: discount interval must be inside the event interval", ErrInvalidDiscount)
	}
	return nil
}

// ValidatePropertyDiscount checks a SESSION or WORKSHOP discount
// embedded in financial settings.
func ValidatePropertyDiscount(event *model.Event, d *model.Discount) error {
	if err := validateDiscountShape(d); err != nil {
		return err
	}
	if d.StartsAt.Before(event.StartsAt) || d.EndsAt.After(event.EndsAt) {
		return fmt.Errorf("%w: discount interval must be inside the event interval", ErrInvalidDiscount)
	}
	return nil
}

func validateDiscountShape(d *model.Discount) error {
	switch d.AmountType {
	case model.AmountTypeAmount:
		if d.Amount < 0 {
			return fmt.Errorf("%w: amount must not be negative", ErrInvalidDiscount)
		}
	case model.AmountTypePercentage:
		if d.Amount < 0 || d.Amount > 100 {
			return fmt.Errorf("%w: percentage must be between 0 and 100", ErrInvalidDiscount)
		}
	default:
		return fmt.Errorf("%w: unknown amount_type %q", ErrInvalidDiscount, d.AmountType)
	}
	if d.UseCount && d.MaxCount < 1 {
		return fmt.Errorf("%w: use_count is true but count is not greater than 0", ErrInvalidDiscount)
	}
	if d.Type == model.DiscountCode && d.Code == "" {
		return fmt.Errorf("%w: provide code when discount type is CODE", ErrInvalidDiscount)
	}
	if d.Type != model.DiscountCode && d.Code != "" {
		return fmt.Errorf("%w: code is only allowed for CODE discounts", ErrInvalidDiscount)
	}
	if !d.StartsAt.Before(d.EndsAt) {
		return fmt.Errorf("%w: starts_at must be before ends_at", ErrInvalidDiscount)
	}
	return nil
}

func isActive(p *model.EventProperty) bool { return p != nil && p.Active }
