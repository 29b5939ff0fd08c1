package service

import (
	"time"

	"github.com/iliyamo/eventhub/internal/model"
)

// PropertyCost is the charge computed for one session or workshop.
type PropertyCost struct {
	Price              int64
	Cost               int64
	AppliedDiscount    bool
	IncreaseUsageCount bool
	DiscountID         *uint64
}

// Item converts the cost into an invoice line.
func (pc PropertyCost) Item(kind model.PropertyKind, workshopID *uint64) model.InvoiceItem {
	return model.InvoiceItem{
		Kind:            kind,
		WorkshopID:      workshopID,
		Price:           pc.Price,
		Cost:            pc.Cost,
		AppliedDiscount: pc.AppliedDiscount,
		DiscountID:      pc.DiscountID,
	}
}

// CalculatePropertyCost prices a property from its financial settings.
// Free properties cost nothing.  A paid property is reduced by its
// embedded discount when now lies strictly inside the discount window;
// a capped discount that reached its ceiling is skipped and the full
// price stands.
func CalculatePropertyCost(fs *model.FinancialSettings, now time.Time) (PropertyCost, error) {
	if fs == nil {
		return PropertyCost{}, ErrMissingFinancialSettings
	}
	pc := PropertyCost{Price: fs.Price}
	if fs.IsFree {
		return pc, nil
	}
	pc.Cost = fs.Price

	d := fs.Discount
	if d == nil || !(d.StartsAt.Before(now) && now.Before(d.EndsAt)) {
		return pc, nil
	}
	if d.UseCount {
		if d.UsageCount >= d.MaxCount {
			return pc, nil
		}
		pc.IncreaseUsageCount = true
	}
	pc.Cost = ApplyDiscount(pc.Cost, d.AmountType, d.Amount)
	pc.AppliedDiscount = true
	id := d.ID
	pc.DiscountID = &id
	return pc, nil
}

// ApplyDiscount reduces cost by a flat amount or by a whole percent.
// The result never drops below zero.
func ApplyDiscount(cost int64, amountType string, amount int64) int64 {
	switch amountType {
	case model.AmountTypeAmount:
		cost -= amount
	case model.AmountTypePercentage:
		cost -= cost * amount / 100
	}
	if cost < 0 {
		return 0
	}
	return cost
}

// WorkshopsInvoice aggregates the per-workshop costs of one purchase.
//
// DiscountIDs lists discounts whose usage counter must grow and
// DiscountedWorkshopIDs the workshops those discounts are embedded in.
type WorkshopsInvoice struct {
	Items                 []model.InvoiceItem
	TotalCost             int64
	WorkshopIDs           []uint64
	DiscountIDs           []uint64
	DiscountedWorkshopIDs []uint64
}

// CalculateWorkshopsInvoice prices every workshop independently.  A
// workshop without financial settings fails the whole batch.
func CalculateWorkshopsInvoice(workshops []*model.Workshop, now time.Time) (WorkshopsInvoice, error) {
	var out WorkshopsInvoice
	for _, ws := range workshops {
		pc, err := CalculatePropertyCost(ws.Financial, now)
		if err != nil {
			return WorkshopsInvoice{}, err
		}
		id := ws.ID
		out.Items = append(out.Items, pc.Item(model.PropertyWorkshop, &id))
		out.TotalCost += pc.Cost
		out.WorkshopIDs = append(out.WorkshopIDs, ws.ID)
		if pc.IncreaseUsageCount {
			out.DiscountIDs = append(out.DiscountIDs, *pc.DiscountID)
			out.DiscountedWorkshopIDs = append(out.DiscountedWorkshopIDs, ws.ID)
		}
	}
	return out, nil
}

// EventPrice is the platform fee quoted to an event creator.
type EventPrice struct {
	SessionCost  int64 `json:"session_cost"`
	WorkshopCost int64 `json:"workshop_cost"`
}

// CalculateEventPrice quotes participants * hours for each property.
func CalculateEventPrice(sessionParticipants, sessionHours, workshopParticipants, workshopHours int64) EventPrice {
	return EventPrice{
		SessionCost:  sessionParticipants * sessionHours,
		WorkshopCost: workshopParticipants * workshopHours,
	}
}
