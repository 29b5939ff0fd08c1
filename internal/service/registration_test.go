package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/queue"
	"github.com/iliyamo/eventhub/internal/repository"
)

const (
	ownerID  uint64 = 10
	adminID  uint64 = 11
	clientID uint64 = 100
	eventID  uint64 = 1
)

// registrationFixture holds the state the mocks answer from.  The
// mocks are rebuilt on every register call so a test can change the
// state between calls.
type registrationFixture struct {
	event     *model.Event
	workshops []*model.Workshop
	settled   []*model.Invoice
	connected bool
	codes     map[string]*model.Discount
	campaigns []*model.Discount

	failProperty error
	failWorkshop error
	failDiscount error
	publishErr   error

	writer    *MockRegistrationWriter
	store     *MockRegistrationStore
	publisher *MockRegistrationPublisher
	svc       *RegistrationService
}

func newRegistrationFixture() *registrationFixture {
	f := &registrationFixture{
		event: &model.Event{
			ID:          eventID,
			OwnerID:     ownerID,
			Name:        "GopherCon",
			Privacy:     model.PrivacyPublic,
			StartsAt:    testNow.Add(-time.Hour),
			EndsAt:      testNow.Add(24 * time.Hour),
			IsPublished: true,
			Properties: map[model.PropertyKind]*model.EventProperty{
				model.PropertySession: {
					Kind: model.PropertySession, Active: true, MaxParticipants: 100,
					Financial: &model.FinancialSettings{Price: 1000},
				},
				model.PropertyWorkshop: {
					Kind: model.PropertyWorkshop, Active: true, MaxParticipants: 40,
					Financial: &model.FinancialSettings{IsFree: true},
				},
			},
		},
		workshops: []*model.Workshop{
			{ID: 5, EventID: eventID, Capacity: 20, Financial: &model.FinancialSettings{Price: 500}},
			{ID: 6, EventID: eventID, Capacity: 0, Financial: &model.FinancialSettings{IsFree: true, Price: 800}},
		},
		codes: map[string]*model.Discount{},
	}

	users := new(MockUserGetter)
	for _, u := range []*model.User{
		{ID: ownerID, Role: model.RoleUser, Email: "owner@example.com"},
		{ID: adminID, Role: model.RoleUser, Email: "admin@example.com"},
		{ID: clientID, Role: model.RoleUser, Email: "client@example.com", FirstName: "Ada", LastName: "Lovelace"},
		{ID: 999, Role: model.RoleAdmin, Email: "root@example.com"},
	} {
		users.On("GetByID", mock.Anything, u.ID).Return(u, nil).Maybe()
	}
	f.svc = &RegistrationService{
		Users:  users,
		Events: mockEvents(f.event, model.EventOperator{EventID: eventID, UserID: adminID, Type: model.OperatorAdmin}),
		Now:    func() time.Time { return testNow },
	}
	return f
}

func (f *registrationFixture) register(req RegistrationRequest) (*model.Invoice, error) {
	workshops := new(MockWorkshopRepository)
	workshops.On("ListByEvent", mock.Anything, eventID).Return(f.workshops, nil).Maybe()

	invoices := new(MockInvoiceLister)
	invoices.On("ListSettled", mock.Anything, req.UserID, req.EventID).Return(f.settled, nil).Maybe()

	friends := new(MockFriendshipChecker)
	friends.On("AreConnected", mock.Anything, req.UserID, ownerID).Return(f.connected, nil).Maybe()

	discounts := new(MockDiscountFinder)
	for code, d := range f.codes {
		discounts.On("GetByCode", mock.Anything, eventID, model.DiscountCode, code).Return(d, nil).Maybe()
	}
	discounts.On("GetByCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, repository.ErrDiscountNotFound).Maybe()
	discounts.On("ListByType", mock.Anything, eventID, model.DiscountCampaign).Return(f.campaigns, nil).Maybe()

	f.writer = new(MockRegistrationWriter)
	f.writer.On("InsertInvoice", mock.Anything, mock.Anything).Return(nil).
		Run(func(args mock.Arguments) { args.Get(1).(*model.Invoice).ID = 1 }).Maybe()
	f.writer.On("IncrementPropertyParticipants", mock.Anything, mock.Anything, mock.Anything).Return(f.failProperty).Maybe()
	f.writer.On("IncrementWorkshopParticipants", mock.Anything, mock.Anything).Return(f.failWorkshop).Maybe()
	f.writer.On("IncrementDiscountUsage", mock.Anything, mock.Anything).Return(f.failDiscount).Maybe()

	f.store = &MockRegistrationStore{Writer: f.writer}
	f.store.On("RunInTx", mock.Anything).Return(nil).Maybe()

	f.publisher = new(MockRegistrationPublisher)
	f.publisher.On("PublishRegistrationCompleted", mock.Anything, mock.Anything).Return(f.publishErr).Maybe()

	f.svc.Workshops = workshops
	f.svc.Invoices = invoices
	f.svc.Friends = friends
	f.svc.Discounts = &DiscountService{Discounts: discounts, Now: f.svc.Now}
	f.svc.Store = f.store
	f.svc.Publisher = f.publisher
	return f.svc.Register(context.Background(), req)
}

func (f *registrationFixture) published() []queue.RegistrationCompletedEvent {
	var out []queue.RegistrationCompletedEvent
	for _, c := range f.publisher.Calls {
		out = append(out, c.Arguments.Get(1).(queue.RegistrationCompletedEvent))
	}
	return out
}

func TestRegister_SessionOnly(t *testing.T) {
	f := newRegistrationFixture()

	inv, err := f.register(RegistrationRequest{UserID: clientID, EventID: eventID, Session: true})
	require.NoError(t, err)

	assert.Equal(t, int64(1000), inv.TotalCost)
	assert.True(t, inv.IsPaid)
	assert.False(t, inv.IsFree)
	assert.NotEmpty(t, inv.Reference)
	assert.Equal(t, model.InvoiceEventParticipant, inv.Type)
	assert.Equal(t, "client@example.com", inv.Owner.Email)
	require.NotNil(t, inv.Session)
	assert.Equal(t, int64(1000), inv.Session.Cost)
	assert.Empty(t, inv.Workshops)

	f.writer.AssertCalled(t, "IncrementPropertyParticipants", mock.Anything, eventID, model.PropertySession)
	f.writer.AssertNumberOfCalls(t, "IncrementPropertyParticipants", 1)
	f.writer.AssertNotCalled(t, "IncrementWorkshopParticipants", mock.Anything, mock.Anything)
	f.writer.AssertNotCalled(t, "IncrementDiscountUsage", mock.Anything, mock.Anything)

	events := f.published()
	require.Len(t, events, 1)
	assert.Equal(t, inv.Reference, events[0].Reference)
	assert.True(t, events[0].Session)
	assert.Empty(t, events[0].DiscountedWorkshopIDs)
}

func TestRegister_WorkshopsAreDedupedAndCounted(t *testing.T) {
	f := newRegistrationFixture()

	inv, err := f.register(RegistrationRequest{
		UserID: clientID, EventID: eventID, WorkshopIDs: []uint64{5, 6, 5},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(500), inv.TotalCost)
	assert.Equal(t, []uint64{5, 6}, inv.WorkshopIDs())
	assert.Nil(t, inv.Session)
	f.writer.AssertCalled(t, "IncrementPropertyParticipants", mock.Anything, eventID, model.PropertyWorkshop)
	f.writer.AssertNumberOfCalls(t, "IncrementPropertyParticipants", 1)
	f.writer.AssertCalled(t, "IncrementWorkshopParticipants", mock.Anything, []uint64{5, 6})
}

func TestRegister_FreeInvoice(t *testing.T) {
	f := newRegistrationFixture()

	inv, err := f.register(RegistrationRequest{UserID: clientID, EventID: eventID, WorkshopIDs: []uint64{6}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), inv.TotalCost)
	assert.True(t, inv.IsFree)
}

func TestRegister_AlreadyPurchasedWorkshop(t *testing.T) {
	f := newRegistrationFixture()
	w5 := uint64(5)
	f.settled = []*model.Invoice{{
		EventID:   eventID,
		IsPaid:    true,
		Workshops: []model.InvoiceItem{{Kind: model.PropertyWorkshop, WorkshopID: &w5}},
	}}

	_, err := f.register(RegistrationRequest{
		UserID: clientID, EventID: eventID, Session: true, WorkshopIDs: []uint64{5, 6},
	})

	var bought *AlreadyPurchasedError
	require.ErrorAs(t, err, &bought)
	assert.Equal(t, []uint64{5}, bought.Workshops)
	assert.False(t, bought.Session)
	assert.True(t, IsBusinessRule(err))
	f.store.AssertNotCalled(t, "RunInTx", mock.Anything)
}

func TestRegister_AlreadyPurchasedSession(t *testing.T) {
	f := newRegistrationFixture()
	f.settled = []*model.Invoice{{EventID: eventID, IsFree: true, Session: &model.InvoiceItem{Kind: model.PropertySession}}}

	_, err := f.register(RegistrationRequest{UserID: clientID, EventID: eventID, Session: true})

	var bought *AlreadyPurchasedError
	require.ErrorAs(t, err, &bought)
	assert.True(t, bought.Session)
	assert.Empty(t, bought.Workshops)
}

func TestRegister_ManagersCannotRegister(t *testing.T) {
	for name, uid := range map[string]uint64{
		"owner":          ownerID,
		"event admin":    adminID,
		"platform admin": 999,
	} {
		t.Run(name, func(t *testing.T) {
			f := newRegistrationFixture()
			_, err := f.register(RegistrationRequest{UserID: uid, EventID: eventID, Session: true})
			assert.ErrorIs(t, err, ErrAdminCannotRegister)
			f.store.AssertNotCalled(t, "RunInTx", mock.Anything)
		})
	}
}

func TestRegister_EventNotOpen(t *testing.T) {
	tests := map[string]func(e *model.Event){
		"unpublished": func(e *model.Event) { e.IsPublished = false },
		"not started": func(e *model.Event) { e.StartsAt = testNow.Add(time.Minute) },
		"ended":       func(e *model.Event) { e.EndsAt = testNow },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			f := newRegistrationFixture()
			mutate(f.event)
			_, err := f.register(RegistrationRequest{UserID: clientID, EventID: eventID, Session: true})
			assert.ErrorIs(t, err, ErrEventNotOpen)
		})
	}
}

func TestRegister_PrivateEventNeedsConnection(t *testing.T) {
	f := newRegistrationFixture()
	f.event.Privacy = model.PrivacyPrivate

	_, err := f.register(RegistrationRequest{UserID: clientID, EventID: eventID, Session: true})
	assert.ErrorIs(t, err, ErrNoEventAccess)

	f.connected = true
	_, err = f.register(RegistrationRequest{UserID: clientID, EventID: eventID, Session: true})
	assert.NoError(t, err)
}

func TestRegister_RequestValidation(t *testing.T) {
	f := newRegistrationFixture()

	_, err := f.register(RegistrationRequest{UserID: clientID, EventID: eventID})
	assert.ErrorIs(t, err, ErrNothingToBuy)

	_, err = f.register(RegistrationRequest{UserID: clientID, EventID: eventID, WorkshopIDs: []uint64{77}})
	assert.ErrorIs(t, err, ErrWorkshopNotInEvent)

	f.event.Properties[model.PropertySession].Active = false
	_, err = f.register(RegistrationRequest{UserID: clientID, EventID: eventID, Session: true})
	assert.ErrorIs(t, err, ErrPropertyInactive)

	_, err = f.register(RegistrationRequest{UserID: clientID, EventID: 404, WorkshopIDs: []uint64{5}})
	assert.ErrorIs(t, err, repository.ErrEventNotFound)
}

func TestRegister_MissingFinancialSettings(t *testing.T) {
	f := newRegistrationFixture()
	f.event.Properties[model.PropertySession].Financial = nil

	_, err := f.register(RegistrationRequest{UserID: clientID, EventID: eventID, Session: true})
	assert.ErrorIs(t, err, ErrMissingFinancialSettings)
	f.store.AssertNotCalled(t, "RunInTx", mock.Anything)
}

func TestRegister_CodeDiscount(t *testing.T) {
	f := newRegistrationFixture()
	f.codes["EARLY"] = &model.Discount{
		ID: 31, EventID: eventID, Type: model.DiscountCode, Code: "EARLY", Name: "early bird",
		Amount: 300, AmountType: model.AmountTypeAmount,
		StartsAt: testNow.Add(-time.Hour), EndsAt: testNow.Add(time.Hour),
		UseCount: true, MaxCount: 10, UsageCount: 2,
	}

	inv, err := f.register(RegistrationRequest{
		UserID: clientID, EventID: eventID, Session: true, WorkshopIDs: []uint64{5}, DiscountCode: "EARLY",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1200), inv.TotalCost)
	require.NotNil(t, inv.Discount)
	assert.Equal(t, "EARLY", inv.Discount.Code)
	f.writer.AssertCalled(t, "IncrementDiscountUsage", mock.Anything, uint64(31))
	f.writer.AssertNumberOfCalls(t, "IncrementDiscountUsage", 1)

	_, err = f.register(RegistrationRequest{
		UserID: clientID, EventID: eventID, Session: true, DiscountCode: "NOPE",
	})
	assert.ErrorIs(t, err, ErrDiscountNotFound)
}

func TestRegister_CampaignAppliedWithoutCode(t *testing.T) {
	f := newRegistrationFixture()
	f.campaigns = []*model.Discount{
		{ID: 40, Type: model.DiscountCampaign, Amount: 90, AmountType: model.AmountTypePercentage,
			StartsAt: testNow.Add(time.Hour), EndsAt: testNow.Add(2 * time.Hour)},
		{ID: 41, Type: model.DiscountCampaign, Amount: 10, AmountType: model.AmountTypePercentage,
			StartsAt: testNow.Add(-time.Hour), EndsAt: testNow.Add(time.Hour)},
	}

	inv, err := f.register(RegistrationRequest{UserID: clientID, EventID: eventID, Session: true})
	require.NoError(t, err)
	assert.Equal(t, int64(900), inv.TotalCost)
	require.NotNil(t, inv.Discount)
	assert.Equal(t, uint64(41), inv.Discount.ID)
	f.writer.AssertNotCalled(t, "IncrementDiscountUsage", mock.Anything, mock.Anything)
}

func TestRegister_EmbeddedDiscountCounted(t *testing.T) {
	f := newRegistrationFixture()
	f.event.Properties[model.PropertySession].Financial.Discount = &model.Discount{
		ID: 50, Type: model.DiscountSession, Amount: 50, AmountType: model.AmountTypePercentage,
		StartsAt: testNow.Add(-time.Hour), EndsAt: testNow.Add(time.Hour), UseCount: true, MaxCount: 3,
	}

	inv, err := f.register(RegistrationRequest{UserID: clientID, EventID: eventID, Session: true})
	require.NoError(t, err)
	assert.Equal(t, int64(500), inv.TotalCost)
	assert.True(t, inv.Session.AppliedDiscount)
	f.writer.AssertCalled(t, "IncrementDiscountUsage", mock.Anything, uint64(50))
}

func TestRegister_DiscountedWorkshopsArePublished(t *testing.T) {
	f := newRegistrationFixture()
	f.workshops[0].Financial.Discount = &model.Discount{
		ID: 60, Type: model.DiscountWorkshop, Amount: 100, AmountType: model.AmountTypeAmount,
		StartsAt: testNow.Add(-time.Hour), EndsAt: testNow.Add(time.Hour), UseCount: true, MaxCount: 5,
	}

	inv, err := f.register(RegistrationRequest{UserID: clientID, EventID: eventID, WorkshopIDs: []uint64{5, 6}})
	require.NoError(t, err)
	assert.Equal(t, int64(400), inv.TotalCost)
	f.writer.AssertCalled(t, "IncrementDiscountUsage", mock.Anything, uint64(60))

	events := f.published()
	require.Len(t, events, 1)
	assert.Equal(t, []uint64{5}, events[0].DiscountedWorkshopIDs)
}

func TestRegister_LostRacesMapToBusinessErrors(t *testing.T) {
	f := newRegistrationFixture()
	f.failProperty = repository.ErrCapacityExceeded
	_, err := f.register(RegistrationRequest{UserID: clientID, EventID: eventID, Session: true})
	assert.ErrorIs(t, err, ErrSoldOut)

	f = newRegistrationFixture()
	f.failWorkshop = repository.ErrCapacityExceeded
	_, err = f.register(RegistrationRequest{UserID: clientID, EventID: eventID, WorkshopIDs: []uint64{5}})
	assert.ErrorIs(t, err, ErrSoldOut)

	f = newRegistrationFixture()
	f.event.Properties[model.PropertySession].Financial.Discount = &model.Discount{
		ID: 50, Amount: 1, AmountType: model.AmountTypeAmount,
		StartsAt: testNow.Add(-time.Hour), EndsAt: testNow.Add(time.Hour), UseCount: true, MaxCount: 1,
	}
	f.failDiscount = repository.ErrDiscountExhausted
	_, err = f.register(RegistrationRequest{UserID: clientID, EventID: eventID, Session: true})
	assert.ErrorIs(t, err, ErrDiscountExpired)
	f.publisher.AssertNotCalled(t, "PublishRegistrationCompleted", mock.Anything, mock.Anything)
}

func TestRegister_PublishFailureDoesNotFailRegistration(t *testing.T) {
	f := newRegistrationFixture()
	f.publishErr = errors.New("broker down")

	inv, err := f.register(RegistrationRequest{UserID: clientID, EventID: eventID, Session: true})
	require.NoError(t, err)
	assert.NotNil(t, inv)
	f.publisher.AssertNumberOfCalls(t, "PublishRegistrationCompleted", 1)
}
