package service

import (
	"context"

	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/queue"
	"github.com/iliyamo/eventhub/internal/repository"
)

// EventReader loads events together with their properties.
type EventReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
	ListOperators(ctx context.Context, eventID uint64) ([]model.EventOperator, error)
}

// WorkshopLister lists the workshops of an event with their financial
// settings.
type WorkshopLister interface {
	ListByEvent(ctx context.Context, eventID uint64) ([]*model.Workshop, error)
}

// UserGetter loads a user by id.
type UserGetter interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// FriendshipChecker reports whether two users are connected.
type FriendshipChecker interface {
	AreConnected(ctx context.Context, a, b uint64) (bool, error)
}

// InvoiceLister lists paid or free invoices of a user for an event.
type InvoiceLister interface {
	ListSettled(ctx context.Context, userID, eventID uint64) ([]*model.Invoice, error)
}

// DiscountFinder looks discounts up for validation.
type DiscountFinder interface {
	GetByCode(ctx context.Context, eventID uint64, discountType, code string) (*model.Discount, error)
	ListByType(ctx context.Context, eventID uint64, discountType string) ([]*model.Discount, error)
}

// RegistrationStore runs the registration write set in one transaction.
type RegistrationStore interface {
	RunInTx(ctx context.Context, fn func(repository.RegistrationWriter) error) error
}

// ScheduleStore runs schedule writes in one transaction.
type ScheduleStore interface {
	RunInTx(ctx context.Context, fn func(repository.ScheduleWriter) error) error
}

// SessionGetter loads a session by id.
type SessionGetter interface {
	GetByID(ctx context.Context, id uint64) (*model.Session, error)
}

// WorkshopGetter loads a workshop by id.
type WorkshopGetter interface {
	GetByID(ctx context.Context, id uint64) (*model.Workshop, error)
}

// RegistrationPublisher announces completed registrations.
type RegistrationPublisher interface {
	PublishRegistrationCompleted(ctx context.Context, ev queue.RegistrationCompletedEvent) error
}
