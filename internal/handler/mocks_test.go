package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/iliyamo/eventhub/internal/model"
)

// MockOperatorStore is a mock implementation of OperatorStore.
type MockOperatorStore struct {
	mock.Mock
}

func (m *MockOperatorStore) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *MockOperatorStore) ListOperators(ctx context.Context, eventID uint64) ([]model.EventOperator, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.EventOperator), args.Error(1)
}

func (m *MockOperatorStore) AddOperator(ctx context.Context, eventID, userID uint64, opType string) error {
	return m.Called(ctx, eventID, userID, opType).Error(0)
}

func (m *MockOperatorStore) RemoveOperator(ctx context.Context, eventID, userID uint64, opType string) error {
	return m.Called(ctx, eventID, userID, opType).Error(0)
}

// MockUserFinder is a mock implementation of UserFinder.
type MockUserFinder struct {
	mock.Mock
}

func (m *MockUserFinder) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

// MockFriendshipChecker is a mock implementation of
// service.FriendshipChecker.
type MockFriendshipChecker struct {
	mock.Mock
}

func (m *MockFriendshipChecker) AreConnected(ctx context.Context, a, b uint64) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

// MockAgendaStore is a mock implementation of AgendaStore.
type MockAgendaStore struct {
	mock.Mock
}

func (m *MockAgendaStore) Replace(ctx context.Context, userID, eventID uint64, items []model.AgendaItem) error {
	return m.Called(ctx, userID, eventID, items).Error(0)
}

func (m *MockAgendaStore) List(ctx context.Context, userID, eventID uint64) ([]model.AgendaItem, error) {
	args := m.Called(ctx, userID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AgendaItem), args.Error(1)
}
