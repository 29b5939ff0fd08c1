package model

import "time"

// Discount types.
const (
	DiscountCode     = "CODE"
	DiscountCampaign = "CAMPAIGN"
	DiscountSession  = "SESSION"
	DiscountWorkshop = "WORKSHOP"
)

// Discount amount types.  PERCENTAGE amounts are whole percents (0-100).
const (
	AmountTypeAmount     = "AMOUNT"
	AmountTypePercentage = "PERCENTAGE"
)

// Discount mirrors the discounts table.  CODE discounts are entered by
// clients, CAMPAIGN discounts are applied to invoices automatically and
// SESSION/WORKSHOP discounts are embedded in a property's financial
// settings.
//
// Fields:
//  WorkshopID – set only for WORKSHOP discounts.
//  Code       – set only for CODE discounts; unique per event.
//  UseCount   – whether MaxCount caps usage.
//  MaxCount   – usage ceiling when UseCount is true.
//  UsageCount – how many invoices applied the discount.
type Discount struct {
	ID         uint64    `json:"id"`                    // discounts.id
	EventID    uint64    `json:"event_id"`              // discounts.event_id
	OwnerID    uint64    `json:"owner_id"`              // discounts.owner_id
	WorkshopID *uint64   `json:"workshop_id,omitempty"` // discounts.workshop_id (nullable)
	Type       string    `json:"type"`                  // discounts.type
	Name       string    `json:"name"`                  // discounts.name
	Code       string    `json:"code,omitempty"`        // discounts.code (nullable)
	Amount     int64     `json:"amount"`                // discounts.amount
	AmountType string    `json:"amount_type"`           // discounts.amount_type
	StartsAt   time.Time `json:"starts_at"`             // discounts.starts_at
	EndsAt     time.Time `json:"ends_at"`               // discounts.ends_at
	UseCount   bool      `json:"use_count"`             // discounts.use_count
	MaxCount   int       `json:"count"`                 // discounts.max_count
	UsageCount int       `json:"usage_count"`           // discounts.usage_count
	CreatedAt  time.Time `json:"created_at"`            // discounts.created_at
	UpdatedAt  time.Time `json:"updated_at"`            // discounts.updated_at
}

// Usable reports whether the discount can be applied at now: the
// instant must fall strictly inside the window and, for capped
// discounts, usage must be below the ceiling.
func (d *Discount) Usable(now time.Time) bool {
	if d == nil {
		return false
	}
	if !(d.StartsAt.Before(now) && now.Before(d.EndsAt)) {
		return false
	}
	if d.UseCount && d.UsageCount >= d.MaxCount {
		return false
	}
	return true
}

// DiscountSnapshot is the copy of a discount stored on an invoice.
type DiscountSnapshot struct {
	ID         uint64 `json:"id"`
	Type       string `json:"type"`
	Name       string `json:"name"`
	Code       string `json:"code,omitempty"`
	Amount     int64  `json:"amount"`
	AmountType string `json:"amount_type"`
}

// Snapshot copies the fields an invoice keeps about the discount.
func (d *Discount) Snapshot() *DiscountSnapshot {
	return &DiscountSnapshot{
		ID:         d.ID,
		Type:       d.Type,
		Name:       d.Name,
		Code:       d.Code,
		Amount:     d.Amount,
		AmountType: d.AmountType,
	}
}
