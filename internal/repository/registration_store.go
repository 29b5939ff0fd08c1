package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/iliyamo/eventhub/internal/model"
)

// RegistrationWriter is the write set of one registration.  Every
// method runs inside the transaction opened by RegistrationStore.RunInTx.
type RegistrationWriter interface {
	InsertInvoice(ctx context.Context, inv *model.Invoice) error
	IncrementPropertyParticipants(ctx context.Context, eventID uint64, kind model.PropertyKind) error
	IncrementWorkshopParticipants(ctx context.Context, workshopIDs []uint64) error
	IncrementDiscountUsage(ctx context.Context, discountID uint64) error
}

// RegistrationStore opens the transaction a registration commits in.
type RegistrationStore struct {
	db *sql.DB
}

// NewRegistrationStore constructs a RegistrationStore.
func NewRegistrationStore(db *sql.DB) *RegistrationStore { return &RegistrationStore{db: db} }

// RunInTx calls fn with a writer bound to a fresh transaction.  The
// transaction commits only if fn returns nil.
func (s *RegistrationStore) RunInTx(ctx context.Context, fn func(RegistrationWriter) error) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&registrationTx{tx: tx})
	})
}

type registrationTx struct {
	tx *sql.Tx
}

func (w *registrationTx) InsertInvoice(ctx context.Context, inv *model.Invoice) error {
	var (
		snapshot   any
		discountID any
	)
	if inv.Discount != nil {
		b, err := json.Marshal(inv.Discount)
		if err != nil {
			return err
		}
		snapshot = string(b)
		discountID = inv.Discount.ID
	}
	res, err := w.tx.ExecContext(ctx,
		`INSERT INTO invoices (reference, type, owner_id, owner_email, owner_first_name, owner_last_name,
			event_id, event_name, is_paid, is_free, total_cost, discount_id, discount_snapshot, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.Reference, inv.Type, inv.Owner.ID, inv.Owner.Email, inv.Owner.FirstName, inv.Owner.LastName,
		inv.EventID, inv.EventName, inv.IsPaid, inv.IsFree, inv.TotalCost, discountID, snapshot, inv.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateEntry
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	inv.ID = uint64(id)

	items := make([]model.InvoiceItem, 0, len(inv.Workshops)+1)
	if inv.Session != nil {
		items = append(items, *inv.Session)
	}
	items = append(items, inv.Workshops...)
	if len(items) == 0 {
		return nil
	}
	q := `INSERT INTO invoice_items (invoice_id, kind, workshop_id, price, cost, applied_discount, discount_id) VALUES `
	args := make([]any, 0, len(items)*7)
	values := make([]string, 0, len(items))
	for _, it := range items {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, inv.ID, it.Kind, it.WorkshopID, it.Price, it.Cost, it.AppliedDiscount, it.DiscountID)
	}
	_, err = w.tx.ExecContext(ctx, q+strings.Join(values, ","), args...)
	return err
}

func (w *registrationTx) IncrementPropertyParticipants(ctx context.Context, eventID uint64, kind model.PropertyKind) error {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE event_properties SET participant_count = participant_count + 1
		 WHERE event_id = ? AND kind = ? AND (max_participants = 0 OR participant_count < max_participants)`,
		eventID, kind)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCapacityExceeded
	}
	return nil
}

// IncrementWorkshopParticipants claims one seat in every listed workshop.
// Capacity 0 means unlimited.  If any workshop is full nothing is
// claimed once the transaction rolls back.
func (w *registrationTx) IncrementWorkshopParticipants(ctx context.Context, workshopIDs []uint64) error {
	if len(workshopIDs) == 0 {
		return nil
	}
	placeholders := make([]string, len(workshopIDs))
	args := make([]any, len(workshopIDs))
	for i, id := range workshopIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	res, err := w.tx.ExecContext(ctx,
		`UPDATE workshops SET participant_count = participant_count + 1
		 WHERE id IN (`+strings.Join(placeholders, ",")+`) AND (capacity = 0 OR participant_count < capacity)`,
		args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != int64(len(workshopIDs)) {
		return ErrCapacityExceeded
	}
	return nil
}

func (w *registrationTx) IncrementDiscountUsage(ctx context.Context, discountID uint64) error {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE discounts SET usage_count = usage_count + 1
		 WHERE id = ? AND (use_count = 0 OR usage_count < max_count)`, discountID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDiscountExhausted
	}
	return nil
}
