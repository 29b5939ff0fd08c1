package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/iliyamo/eventhub/internal/model"
)

// InvoiceRepo reads invoices and their items.  Invoices are written by
// RegistrationStore.
type InvoiceRepo struct {
	db *sql.DB
}

// NewInvoiceRepo constructs an InvoiceRepo.
func NewInvoiceRepo(db *sql.DB) *InvoiceRepo { return &InvoiceRepo{db: db} }

const invoiceColumns = `id, reference, type, owner_id, owner_email, owner_first_name, owner_last_name,
	event_id, event_name, is_paid, is_free, total_cost, discount_snapshot, created_at`

func scanInvoice(row interface{ Scan(...any) error }) (*model.Invoice, error) {
	var (
		inv  model.Invoice
		snap []byte
	)
	err := row.Scan(&inv.ID, &inv.Reference, &inv.Type, &inv.Owner.ID, &inv.Owner.Email, &inv.Owner.FirstName,
		&inv.Owner.LastName, &inv.EventID, &inv.EventName, &inv.IsPaid, &inv.IsFree, &inv.TotalCost, &snap, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(snap) > 0 {
		var d model.DiscountSnapshot
		if err := json.Unmarshal(snap, &d); err != nil {
			return nil, err
		}
		inv.Discount = &d
	}
	return &inv, nil
}

// ListSettled returns the paid or free invoices of a user for one event,
// items included.
func (r *InvoiceRepo) ListSettled(ctx context.Context, userID, eventID uint64) ([]*model.Invoice, error) {
	return r.list(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE owner_id = ? AND event_id = ? AND (is_paid = 1 OR is_free = 1) ORDER BY id`,
		userID, eventID)
}

// ListByOwner returns every invoice of a user, newest first.
func (r *InvoiceRepo) ListByOwner(ctx context.Context, userID uint64) ([]*model.Invoice, error) {
	return r.list(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE owner_id = ? ORDER BY id DESC`, userID)
}

func (r *InvoiceRepo) list(ctx context.Context, q string, args ...any) ([]*model.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var (
		out  []*model.Invoice
		byID = make(map[uint64]*model.Invoice)
	)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, inv)
		byID[inv.ID] = inv
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	return out, r.loadItems(ctx, byID)
}

func (r *InvoiceRepo) loadItems(ctx context.Context, byID map[uint64]*model.Invoice) error {
	placeholders := make([]string, 0, len(byID))
	args := make([]any, 0, len(byID))
	for id := range byID {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT invoice_id, kind, workshop_id, price, cost, applied_discount, discount_id
		 FROM invoice_items WHERE invoice_id IN (`+strings.Join(placeholders, ",")+`) ORDER BY id`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			invoiceID  uint64
			item       model.InvoiceItem
			workshopID sql.NullInt64
			discountID sql.NullInt64
		)
		if err := rows.Scan(&invoiceID, &item.Kind, &workshopID, &item.Price, &item.Cost,
			&item.AppliedDiscount, &discountID); err != nil {
			return err
		}
		item.WorkshopID = nullUint64(workshopID)
		item.DiscountID = nullUint64(discountID)
		inv := byID[invoiceID]
		if inv == nil {
			continue
		}
		if item.Kind == model.PropertySession {
			it := item
			inv.Session = &it
		} else {
			inv.Workshops = append(inv.Workshops, item)
		}
	}
	return rows.Err()
}

// Participant is one buyer of an event as shown to its managers.
type Participant struct {
	UserID      uint64    `json:"user_id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Session     bool      `json:"session"`
	WorkshopIDs []uint64  `json:"workshops"`
	FirstBought time.Time `json:"first_bought_at"`
}

// ListParticipants aggregates the settled invoices of an event per buyer.
func (r *InvoiceRepo) ListParticipants(ctx context.Context, eventID uint64) ([]*Participant, error) {
	invoices, err := r.list(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE event_id = ? AND (is_paid = 1 OR is_free = 1) ORDER BY id`,
		eventID)
	if err != nil {
		return nil, err
	}
	var out []*Participant
	byUser := make(map[uint64]*Participant)
	for _, inv := range invoices {
		p, ok := byUser[inv.Owner.ID]
		if !ok {
			p = &Participant{
				UserID:      inv.Owner.ID,
				Email:       inv.Owner.Email,
				FirstName:   inv.Owner.FirstName,
				LastName:    inv.Owner.LastName,
				WorkshopIDs: []uint64{},
				FirstBought: inv.CreatedAt,
			}
			byUser[inv.Owner.ID] = p
			out = append(out, p)
		}
		if inv.Session != nil {
			p.Session = true
		}
		p.WorkshopIDs = append(p.WorkshopIDs, inv.WorkshopIDs()...)
	}
	return out, nil
}

// HasInvoices reports whether any invoice references the event.
func (r *InvoiceRepo) HasInvoices(ctx context.Context, eventID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices WHERE event_id = ?`, eventID).Scan(&n)
	return n > 0, err
}

func nullUint64(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	u := uint64(v.Int64)
	return &u
}
