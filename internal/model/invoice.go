package model

import "time"

// Invoice types.
const (
	InvoiceEventParticipant = "EVENT_PARTICIPANT"
	InvoiceEventCreator     = "EVENT_CREATOR"
	InvoiceBoothExhibitor   = "BOOTH_EXHIBITOR"
)

// Invoice records one registration attempt.  Money fields are fixed at
// creation; an invoice is never repriced afterwards.
//
// Fields:
//  Reference – public identifier returned to clients.
//  Owner     – snapshot of the buyer at registration time.
//  Session   – session cost breakdown when the session was bought.
//  Workshops – per-workshop cost breakdowns.
//  Discount  – invoice-level discount snapshot, if one applied.
type Invoice struct {
	ID        uint64            `json:"id"`        // invoices.id
	Reference string            `json:"reference"` // invoices.reference
	Type      string            `json:"type"`      // invoices.type
	Owner     InvoiceOwner      `json:"owner"`
	EventID   uint64            `json:"event_id"`   // invoices.event_id
	EventName string            `json:"event_name"` // invoices.event_name
	IsPaid    bool              `json:"is_paid"`    // invoices.is_paid
	IsFree    bool              `json:"is_free"`    // invoices.is_free
	TotalCost int64             `json:"total_cost"` // invoices.total_cost
	Session   *InvoiceItem      `json:"session,omitempty"`
	Workshops []InvoiceItem     `json:"workshops,omitempty"`
	Discount  *DiscountSnapshot `json:"discount,omitempty"`
	CreatedAt time.Time         `json:"created_at"` // invoices.created_at
}

// WorkshopIDs lists the workshops bought with the invoice.
func (inv *Invoice) WorkshopIDs() []uint64 {
	ids := make([]uint64, 0, len(inv.Workshops))
	for _, w := range inv.Workshops {
		if w.WorkshopID != nil {
			ids = append(ids, *w.WorkshopID)
		}
	}
	return ids
}

// InvoiceOwner is the buyer snapshot kept on an invoice.
type InvoiceOwner struct {
	ID        uint64 `json:"id"`         // invoices.owner_id
	Email     string `json:"email"`      // invoices.owner_email
	FirstName string `json:"first_name"` // invoices.owner_first_name
	LastName  string `json:"last_name"`  // invoices.owner_last_name
}

// InvoiceItem mirrors the invoice_items table: the price of one
// purchased property and the discount applied to it.
type InvoiceItem struct {
	Kind            PropertyKind `json:"kind"`                  // invoice_items.kind
	WorkshopID      *uint64      `json:"workshop_id,omitempty"` // invoice_items.workshop_id (nullable)
	Price           int64        `json:"price"`                 // invoice_items.price
	Cost            int64        `json:"cost"`                  // invoice_items.cost
	AppliedDiscount bool         `json:"applied_discount"`      // invoice_items.applied_discount
	DiscountID      *uint64      `json:"discount_id,omitempty"` // invoice_items.discount_id (nullable)
}
