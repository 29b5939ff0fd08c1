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
	"github.com/iliyamo/eventhub/internal/repository"
)

func discountService(f *MockDiscountFinder) *DiscountService {
	return &DiscountService{Discounts: f, Now: func() time.Time { return testNow }}
}

func TestValidateCode(t *testing.T) {
	d := &model.Discount{
		ID: 3, Type: model.DiscountCode, Code: "SPRING", Amount: 15, AmountType: model.AmountTypePercentage,
		StartsAt: testNow.Add(-time.Hour), EndsAt: testNow.Add(time.Hour),
	}
	finder := new(MockDiscountFinder)
	finder.On("GetByCode", mock.Anything, uint64(1), model.DiscountCode, "SPRING").Return(d, nil)
	finder.On("GetByCode", mock.Anything, uint64(1), model.DiscountCode, "WINTER").Return(nil, repository.ErrDiscountNotFound)
	svc := discountService(finder)

	got, err := svc.ValidateCode(context.Background(), "SPRING", 1)
	require.NoError(t, err)
	assert.Equal(t, CodeDiscount{AmountType: model.AmountTypePercentage, Amount: 15}, got)

	_, err = svc.ValidateCode(context.Background(), "WINTER", 1)
	assert.ErrorIs(t, err, ErrDiscountNotFound)

	d.UseCount, d.MaxCount, d.UsageCount = true, 2, 2
	_, err = svc.ValidateCode(context.Background(), "SPRING", 1)
	assert.ErrorIs(t, err, ErrDiscountExpired)

	d.UseCount = false
	d.EndsAt = testNow
	_, err = svc.ValidateCode(context.Background(), "SPRING", 1)
	assert.ErrorIs(t, err, ErrDiscountExpired)
	finder.AssertExpectations(t)
}

func TestValidateCode_StoreFailureIsNotBusinessRule(t *testing.T) {
	finder := new(MockDiscountFinder)
	finder.On("GetByCode", mock.Anything, uint64(1), model.DiscountCode, "X").Return(nil, errors.New("connection reset"))

	_, err := discountService(finder).ValidateCode(context.Background(), "X", 1)
	require.Error(t, err)
	assert.False(t, IsBusinessRule(err))
}

func TestForInvoice_NoUsableCampaign(t *testing.T) {
	finder := new(MockDiscountFinder)
	finder.On("ListByType", mock.Anything, uint64(1), model.DiscountCampaign).Return([]*model.Discount{{
		ID: 1, Type: model.DiscountCampaign, AmountType: model.AmountTypeAmount, Amount: 10,
		StartsAt: testNow.Add(-time.Hour), EndsAt: testNow.Add(time.Hour),
		UseCount: true, MaxCount: 1, UsageCount: 1,
	}}, nil)

	d, err := discountService(finder).ForInvoice(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Nil(t, d)
	finder.AssertExpectations(t)
}

func TestApplyInvoiceDiscount(t *testing.T) {
	inv := &model.Invoice{TotalCost: 2000}
	ApplyInvoiceDiscount(inv, &model.Discount{ID: 9, Type: model.DiscountCampaign, Name: "launch", Amount: 25, AmountType: model.AmountTypePercentage})
	assert.Equal(t, int64(1500), inv.TotalCost)
	require.NotNil(t, inv.Discount)
	assert.Equal(t, uint64(9), inv.Discount.ID)
	assert.Equal(t, "launch", inv.Discount.Name)
}

func discountEvent() *model.Event {
	return &model.Event{
		ID: 1, StartsAt: testNow, EndsAt: testNow.Add(24 * time.Hour),
		Properties: map[model.PropertyKind]*model.EventProperty{
			model.PropertySession:  {Kind: model.PropertySession, Active: true, MaxParticipants: 30},
			model.PropertyWorkshop: {Kind: model.PropertyWorkshop, Active: false, MaxParticipants: 10},
		},
	}
}

func codeDiscount() *model.Discount {
	return &model.Discount{
		Type: model.DiscountCode, Code: "VIP", Amount: 500, AmountType: model.AmountTypeAmount,
		StartsAt: testNow, EndsAt: testNow.Add(time.Hour),
	}
}

func TestValidateCreateDiscount(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *model.Event, d *model.Discount)
		wantErr string
	}{
		{name: "valid", mutate: func(*model.Event, *model.Discount) {}},
		{name: "count at ceiling", mutate: func(_ *model.Event, d *model.Discount) { d.UseCount, d.MaxCount = true, 40 }},
		{name: "count above ceiling", mutate: func(_ *model.Event, d *model.Discount) { d.UseCount, d.MaxCount = true, 41 },
			wantErr: "max_participants"},
		{name: "count required", mutate: func(_ *model.Event, d *model.Discount) { d.UseCount = true },
			wantErr: "count is not greater than 0"},
		{name: "starts before event", mutate: func(_ *model.Event, d *model.Discount) { d.StartsAt = testNow.Add(-time.Second) },
			wantErr: "inside the event interval"},
		{name: "ends after event", mutate: func(_ *model.Event, d *model.Discount) { d.EndsAt = testNow.Add(25 * time.Hour) },
			wantErr: "inside the event interval"},
		{name: "empty window", mutate: func(_ *model.Event, d *model.Discount) { d.EndsAt = d.StartsAt },
			wantErr: "starts_at must be before ends_at"},
		{name: "percentage above 100", mutate: func(_ *model.Event, d *model.Discount) {
			d.AmountType, d.Amount = model.AmountTypePercentage, 101
		}, wantErr: "between 0 and 100"},
		{name: "negative amount", mutate: func(_ *model.Event, d *model.Discount) { d.Amount = -1 },
			wantErr: "must not be negative"},
		{name: "code missing", mutate: func(_ *model.Event, d *model.Discount) { d.Code = "" },
			wantErr: "provide code"},
		{name: "campaign with code", mutate: func(_ *model.Event, d *model.Discount) { d.Type = model.DiscountCampaign },
			wantErr: "only allowed for CODE"},
		{name: "no active property", mutate: func(e *model.Event, _ *model.Discount) {
			e.Properties[model.PropertySession].Active = false
		}, wantErr: "no active property"},
		{name: "no properties", mutate: func(e *model.Event, _ *model.Discount) { e.Properties = nil },
			wantErr: "configuration is not complete"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, d := discountEvent(), codeDiscount()
			tt.mutate(e, d)
			err := ValidateCreateDiscount(e, d)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidDiscount)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidatePropertyDiscount(t *testing.T) {
	e := discountEvent()
	d := &model.Discount{
		Type: model.DiscountSession, Amount: 20, AmountType: model.AmountTypePercentage,
		StartsAt: testNow, EndsAt: testNow.Add(time.Hour),
	}
	assert.NoError(t, ValidatePropertyDiscount(e, d))

	d.EndsAt = e.EndsAt.Add(time.Minute)
	assert.ErrorIs(t, ValidatePropertyDiscount(e, d), ErrInvalidDiscount)
}
