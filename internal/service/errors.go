package service

import (
	"errors"
	"fmt"
	"strings"
)

// Business rule violations.  Handlers answer these with 400 and the
// error text as the detail message.
var (
	ErrMissingFinancialSettings = errors.New("invalid event: financial settings are not set")
	ErrOutOfEventDuration       = errors.New("out of event duration")
	ErrNotEnoughTime            = errors.New("not enough remaining time")
	ErrPropertyInactive         = errors.New("event property is not active")
	ErrDiscountNotFound         = errors.New("discount not found for the given discount code")
	ErrDiscountExpired          = errors.New("discount is expired")
	ErrInvalidDiscount          = errors.New("invalid discount")
	ErrAdminCannotRegister      = errors.New("admin user can not register in this event")
	ErrEventNotOpen             = errors.New("event has not started, has ended or is not published")
	ErrNoEventAccess            = errors.New("you do not have access to this event")
	ErrNothingToBuy             = errors.New("user must buy at least one property")
	ErrWorkshopNotInEvent       = errors.New("workshop does not exist in this event")
	ErrEventNotReady            = errors.New("event is not ready to be published")
	ErrSoldOut                  = errors.New("no seats left")
)

// ErrForbidden is returned when the caller does not own or administer
// the event.  Handlers answer it with 403.
var ErrForbidden = errors.New("you do not have access to this endpoint")

// AlreadyPurchasedError lists the properties a user already holds a
// paid or free invoice for.
type AlreadyPurchasedError struct {
	Workshops []uint64 `json:"workshops"`
	Session   bool     `json:"session"`
}

func (e *AlreadyPurchasedError) Error() string {
	parts := make([]string, 0, 2)
	if e.Session {
		parts = append(parts, "session")
	}
	if len(e.Workshops) > 0 {
		parts = append(parts, fmt.Sprintf("workshops %v", e.Workshops))
	}
	return "user has already bought the provided properties: " + strings.Join(parts, ", ")
}

// IsBusinessRule reports whether err is a rule violation rather than an
// infrastructure failure.
func IsBusinessRule(err error) bool {
	var bought *AlreadyPurchasedError
	if errors.As(err, &bought) {
		return true
	}
	for _, target := range []error{
		ErrMissingFinancialSettings, ErrOutOfEventDuration, ErrNotEnoughTime,
		ErrPropertyInactive, ErrDiscountNotFound, ErrDiscountExpired,
		ErrInvalidDiscount, ErrAdminCannotRegister, ErrEventNotOpen,
		ErrNoEventAccess, ErrNothingToBuy, ErrWorkshopNotInEvent,
		ErrEventNotReady, ErrSoldOut,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
