// Package repository contains data access logic for the event domain.
// This file covers events, their session/workshop properties and their
// operators.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/eventhub/internal/model"
)

// EventRepo manages persistence for events.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo constructs an EventRepo with the given DB handle.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, owner_id, name, description, category, privacy, starts_at, ends_at, is_published, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }, e *model.Event) error {
	return row.Scan(&e.ID, &e.OwnerID, &e.Name, &e.Description, &e.Category, &e.Privacy,
		&e.StartsAt, &e.EndsAt, &e.IsPublished, &e.CreatedAt, &e.UpdatedAt)
}

// Create inserts the event and one property row per kind in a single
// transaction.  Missing properties are stored inactive.  The remaining
// budget of every property starts equal to its total.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO events (owner_id, name, description, category, privacy, starts_at, ends_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.OwnerID, e.Name, e.Description, e.Category, e.Privacy, e.StartsAt, e.EndsAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)

	if e.Properties == nil {
		e.Properties = map[model.PropertyKind]*model.EventProperty{}
	}
	for _, kind := range []model.PropertyKind{model.PropertySession, model.PropertyWorkshop} {
		p := e.Properties[kind]
		if p == nil {
			p = &model.EventProperty{}
			e.Properties[kind] = p
		}
		p.Kind = kind
		p.RemainingSeconds = p.TotalSeconds
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO event_properties (event_id, kind, active, max_participants, total_seconds, remaining_seconds) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, kind, p.Active, p.MaxParticipants, p.TotalSeconds, p.RemainingSeconds); err != nil {
			return err
		}
	}

	if err := scanEvent(tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, e.ID), e); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID loads an event with its properties, their financial settings
// and embedded discounts.  It returns ErrEventNotFound if there is no
// matching row.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	var e model.Event
	err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id), &e)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	props, err := r.properties(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Properties = props
	return &e, nil
}

func (r *EventRepo) properties(ctx context.Context, eventID uint64) (map[model.PropertyKind]*model.EventProperty, error) {
	const q = `SELECT p.kind, p.active, p.max_participants, p.total_seconds, p.remaining_seconds, p.participant_count,
	                  p.settings_set, p.is_free, p.price, ` + joinedDiscountColumns + `
	           FROM event_properties p LEFT JOIN discounts d ON d.id = p.discount_id
	           WHERE p.event_id = ?`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.PropertyKind]*model.EventProperty, 2)
	for rows.Next() {
		var (
			p           model.EventProperty
			settingsSet bool
			fs          model.FinancialSettings
			nd          nullDiscount
		)
		dest := []any{&p.Kind, &p.Active, &p.MaxParticipants, &p.TotalSeconds, &p.RemainingSeconds, &p.ParticipantCount,
			&settingsSet, &fs.IsFree, &fs.Price}
		if err := rows.Scan(append(dest, nd.dest()...)...); err != nil {
			return nil, err
		}
		if settingsSet {
			fs.Discount = nd.discount()
			p.Financial = &fs
		}
		out[p.Kind] = &p
	}
	return out, rows.Err()
}

// ListByOwner returns the events created by ownerID, newest first.
// Properties are not loaded.
func (r *EventRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM events WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
}

// ListPublished returns published events that have not ended yet.
func (r *EventRepo) ListPublished(ctx context.Context, now time.Time, limit, offset int) ([]*model.Event, error) {
	return r.list(ctx,
		`SELECT `+eventColumns+` FROM events WHERE is_published = 1 AND privacy = 'PUBLIC' AND ends_at > ? ORDER BY starts_at, id LIMIT ? OFFSET ?`,
		now, limit, offset)
}

func (r *EventRepo) list(ctx context.Context, q string, args ...any) ([]*model.Event, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Event
	for rows.Next() {
		var e model.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Update writes the editable event fields.
func (r *EventRepo) Update(ctx context.Context, e *model.Event) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET name = ?, description = ?, category = ?, privacy = ?, starts_at = ?, ends_at = ? WHERE id = ?`,
		e.Name, e.Description, e.Category, e.Privacy, e.StartsAt, e.EndsAt, e.ID)
	return err
}

// ChildrenWindow returns the earliest start and latest end among the
// event's sessions and workshops.  ok is false when nothing is scheduled.
func (r *EventRepo) ChildrenWindow(ctx context.Context, eventID uint64) (start, end time.Time, ok bool, err error) {
	const q = `SELECT MIN(s), MAX(e) FROM (
	             SELECT starts_at AS s, ends_at AS e FROM sessions WHERE event_id = ?
	             UNION ALL
	             SELECT starts_at, ends_at FROM workshops WHERE event_id = ?
	           ) children`
	var s, e sql.NullTime
	if err = r.db.QueryRowContext(ctx, q, eventID, eventID).Scan(&s, &e); err != nil {
		return
	}
	if !s.Valid || !e.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	return s.Time, e.Time, true, nil
}

// SetPublished flips the publish flag.
func (r *EventRepo) SetPublished(ctx context.Context, id uint64, published bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE events SET is_published = ? WHERE id = ?`, published, id)
	return err
}

// Delete removes an event unless invoices reference it.
func (r *EventRepo) Delete(ctx context.Context, id uint64) error {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices WHERE event_id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrEventNotFound
	}
	return nil
}

// ListOperators returns the operators of an event with their emails.
func (r *EventRepo) ListOperators(ctx context.Context, eventID uint64) ([]model.EventOperator, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT o.event_id, o.user_id, o.type, u.email, o.created_at
		 FROM event_operators o JOIN users u ON u.id = o.user_id
		 WHERE o.event_id = ? ORDER BY o.created_at`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.EventOperator
	for rows.Next() {
		var op model.EventOperator
		if err := rows.Scan(&op.EventID, &op.UserID, &op.Type, &op.Email, &op.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// AddOperator links a user to the event.
func (r *EventRepo) AddOperator(ctx context.Context, eventID, userID uint64, opType string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_operators (event_id, user_id, type) VALUES (?, ?, ?)`, eventID, userID, opType)
	if isDuplicate(err) {
		return ErrDuplicateEntry
	}
	return err
}

// RemoveOperator unlinks a user from the event.
func (r *EventRepo) RemoveOperator(ctx context.Context, eventID, userID uint64, opType string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM event_operators WHERE event_id = ? AND user_id = ? AND type = ?`, eventID, userID, opType)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOperatorNotFound
	}
	return nil
}

// SetPropertyFinancial stores the financial settings of a property.  A
// non-nil discount replaces the embedded discount; the previous one is
// deleted.
func (r *EventRepo) SetPropertyFinancial(ctx context.Context, eventID uint64, kind model.PropertyKind, isFree bool, price int64, d *model.Discount) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var old sql.NullInt64
		err := tx.QueryRowContext(ctx,
			`SELECT discount_id FROM event_properties WHERE event_id = ? AND kind = ? FOR UPDATE`, eventID, kind).Scan(&old)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrEventNotFound
			}
			return err
		}
		var discountID any = old
		if d != nil {
			if err := insertDiscountTx(ctx, tx, d); err != nil {
				return err
			}
			discountID = d.ID
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE event_properties SET settings_set = 1, is_free = ?, price = ?, discount_id = ? WHERE event_id = ? AND kind = ?`,
			isFree, price, discountID, eventID, kind); err != nil {
			return err
		}
		if d != nil && old.Valid {
			_, err = tx.ExecContext(ctx, `DELETE FROM discounts WHERE id = ?`, old.Int64)
		}
		return err
	})
}

// ClearPropertyDiscount removes the embedded discount of a property.
func (r *EventRepo) ClearPropertyDiscount(ctx context.Context, eventID uint64, kind model.PropertyKind) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var old sql.NullInt64
		err := tx.QueryRowContext(ctx,
			`SELECT discount_id FROM event_properties WHERE event_id = ? AND kind = ? FOR UPDATE`, eventID, kind).Scan(&old)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrEventNotFound
			}
			return err
		}
		if !old.Valid {
			return ErrDiscountNotFound
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE event_properties SET discount_id = NULL WHERE event_id = ? AND kind = ?`, eventID, kind); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM discounts WHERE id = ?`, old.Int64)
		return err
	})
}

// withTx runs fn inside a transaction and commits when it returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
