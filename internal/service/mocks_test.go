package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/queue"
	"github.com/iliyamo/eventhub/internal/repository"
)

// MockEventReader is a mock implementation of EventReader.
type MockEventReader struct {
	mock.Mock
}

func (m *MockEventReader) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *MockEventReader) ListOperators(ctx context.Context, eventID uint64) ([]model.EventOperator, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.EventOperator), args.Error(1)
}

// mockEvents serves one event and its operators; other ids are not found.
func mockEvents(e *model.Event, ops ...model.EventOperator) *MockEventReader {
	m := new(MockEventReader)
	m.On("GetByID", mock.Anything, e.ID).Return(e, nil).Maybe()
	m.On("GetByID", mock.Anything, mock.Anything).Return(nil, repository.ErrEventNotFound).Maybe()
	m.On("ListOperators", mock.Anything, e.ID).Return(ops, nil).Maybe()
	return m
}

// MockUserGetter is a mock implementation of UserGetter.
type MockUserGetter struct {
	mock.Mock
}

func (m *MockUserGetter) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

// MockWorkshopRepository is a mock implementation of WorkshopLister and
// WorkshopGetter.
type MockWorkshopRepository struct {
	mock.Mock
}

func (m *MockWorkshopRepository) ListByEvent(ctx context.Context, eventID uint64) ([]*model.Workshop, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Workshop), args.Error(1)
}

func (m *MockWorkshopRepository) GetByID(ctx context.Context, id uint64) (*model.Workshop, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Workshop), args.Error(1)
}

// MockSessionGetter is a mock implementation of SessionGetter.
type MockSessionGetter struct {
	mock.Mock
}

func (m *MockSessionGetter) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

// MockFriendshipChecker is a mock implementation of FriendshipChecker.
type MockFriendshipChecker struct {
	mock.Mock
}

func (m *MockFriendshipChecker) AreConnected(ctx context.Context, a, b uint64) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

// MockInvoiceLister is a mock implementation of InvoiceLister.
type MockInvoiceLister struct {
	mock.Mock
}

func (m *MockInvoiceLister) ListSettled(ctx context.Context, userID, eventID uint64) ([]*model.Invoice, error) {
	args := m.Called(ctx, userID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Invoice), args.Error(1)
}

// MockDiscountFinder is a mock implementation of DiscountFinder.
type MockDiscountFinder struct {
	mock.Mock
}

func (m *MockDiscountFinder) GetByCode(ctx context.Context, eventID uint64, discountType, code string) (*model.Discount, error) {
	args := m.Called(ctx, eventID, discountType, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Discount), args.Error(1)
}

func (m *MockDiscountFinder) ListByType(ctx context.Context, eventID uint64, discountType string) ([]*model.Discount, error) {
	args := m.Called(ctx, eventID, discountType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Discount), args.Error(1)
}

// MockRegistrationWriter is a mock implementation of
// repository.RegistrationWriter.
type MockRegistrationWriter struct {
	mock.Mock
}

func (m *MockRegistrationWriter) InsertInvoice(ctx context.Context, inv *model.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *MockRegistrationWriter) IncrementPropertyParticipants(ctx context.Context, eventID uint64, kind model.PropertyKind) error {
	return m.Called(ctx, eventID, kind).Error(0)
}

func (m *MockRegistrationWriter) IncrementWorkshopParticipants(ctx context.Context, workshopIDs []uint64) error {
	return m.Called(ctx, workshopIDs).Error(0)
}

func (m *MockRegistrationWriter) IncrementDiscountUsage(ctx context.Context, discountID uint64) error {
	return m.Called(ctx, discountID).Error(0)
}

// MockRegistrationStore records RunInTx and hands fn its Writer.
type MockRegistrationStore struct {
	mock.Mock
	Writer *MockRegistrationWriter
}

func (m *MockRegistrationStore) RunInTx(ctx context.Context, fn func(repository.RegistrationWriter) error) error {
	if err := m.Called(ctx).Error(0); err != nil {
		return err
	}
	return fn(m.Writer)
}

// MockScheduleWriter is a mock implementation of
// repository.ScheduleWriter.  Every method also accepts a function with
// its own signature as the return value, so a test can serve rows from
// its own state.
type MockScheduleWriter struct {
	mock.Mock
}

func (m *MockScheduleWriter) LockProperty(ctx context.Context, eventID uint64, kind model.PropertyKind) (*model.EventProperty, error) {
	args := m.Called(ctx, eventID, kind)
	if fn, ok := args.Get(0).(func(context.Context, uint64, model.PropertyKind) (*model.EventProperty, error)); ok {
		return fn(ctx, eventID, kind)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EventProperty), args.Error(1)
}

func (m *MockScheduleWriter) LockSession(ctx context.Context, id uint64) (*model.Session, error) {
	args := m.Called(ctx, id)
	if fn, ok := args.Get(0).(func(context.Context, uint64) (*model.Session, error)); ok {
		return fn(ctx, id)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *MockScheduleWriter) LockWorkshop(ctx context.Context, id uint64) (*model.Workshop, error) {
	args := m.Called(ctx, id)
	if fn, ok := args.Get(0).(func(context.Context, uint64) (*model.Workshop, error)); ok {
		return fn(ctx, id)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Workshop), args.Error(1)
}

func (m *MockScheduleWriter) ConsumeSeconds(ctx context.Context, eventID uint64, kind model.PropertyKind, delta int64) error {
	args := m.Called(ctx, eventID, kind, delta)
	if fn, ok := args.Get(0).(func(context.Context, uint64, model.PropertyKind, int64) error); ok {
		return fn(ctx, eventID, kind, delta)
	}
	return args.Error(0)
}

func (m *MockScheduleWriter) SetRemainingSeconds(ctx context.Context, eventID uint64, kind model.PropertyKind, seconds int64) error {
	args := m.Called(ctx, eventID, kind, seconds)
	if fn, ok := args.Get(0).(func(context.Context, uint64, model.PropertyKind, int64) error); ok {
		return fn(ctx, eventID, kind, seconds)
	}
	return args.Error(0)
}

func (m *MockScheduleWriter) CreateSession(ctx context.Context, s *model.Session) error {
	args := m.Called(ctx, s)
	if fn, ok := args.Get(0).(func(context.Context, *model.Session) error); ok {
		return fn(ctx, s)
	}
	return args.Error(0)
}

func (m *MockScheduleWriter) UpdateSession(ctx context.Context, s *model.Session) error {
	args := m.Called(ctx, s)
	if fn, ok := args.Get(0).(func(context.Context, *model.Session) error); ok {
		return fn(ctx, s)
	}
	return args.Error(0)
}

func (m *MockScheduleWriter) DeleteSession(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	if fn, ok := args.Get(0).(func(context.Context, uint64) error); ok {
		return fn(ctx, id)
	}
	return args.Error(0)
}

func (m *MockScheduleWriter) CreateWorkshop(ctx context.Context, w *model.Workshop) error {
	args := m.Called(ctx, w)
	if fn, ok := args.Get(0).(func(context.Context, *model.Workshop) error); ok {
		return fn(ctx, w)
	}
	return args.Error(0)
}

func (m *MockScheduleWriter) UpdateWorkshop(ctx context.Context, w *model.Workshop) error {
	args := m.Called(ctx, w)
	if fn, ok := args.Get(0).(func(context.Context, *model.Workshop) error); ok {
		return fn(ctx, w)
	}
	return args.Error(0)
}

func (m *MockScheduleWriter) DeleteWorkshop(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	if fn, ok := args.Get(0).(func(context.Context, uint64) error); ok {
		return fn(ctx, id)
	}
	return args.Error(0)
}

// MockScheduleStore records RunInTx and hands fn its Writer.
type MockScheduleStore struct {
	mock.Mock
	Writer *MockScheduleWriter
}

func (m *MockScheduleStore) RunInTx(ctx context.Context, fn func(repository.ScheduleWriter) error) error {
	if err := m.Called(ctx).Error(0); err != nil {
		return err
	}
	return fn(m.Writer)
}

// MockRegistrationPublisher is a mock implementation of
// RegistrationPublisher.
type MockRegistrationPublisher struct {
	mock.Mock
}

func (m *MockRegistrationPublisher) PublishRegistrationCompleted(ctx context.Context, ev queue.RegistrationCompletedEvent) error {
	return m.Called(ctx, ev).Error(0)
}
