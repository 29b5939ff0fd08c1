package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/eventhub/internal/model"
)

// WorkshopRepo reads workshops together with their financial settings
// and writes those settings.  Schedule changes go through ScheduleStore.
type WorkshopRepo struct {
	db *sql.DB
}

// NewWorkshopRepo constructs a WorkshopRepo.
func NewWorkshopRepo(db *sql.DB) *WorkshopRepo { return &WorkshopRepo{db: db} }

const workshopSelect = `SELECT w.id, w.event_id, w.title, w.description, w.capacity, w.participant_count,
	w.starts_at, w.ends_at, w.created_at, w.updated_at, w.settings_set, w.is_free, w.price, ` + joinedDiscountColumns + `
	FROM workshops w LEFT JOIN discounts d ON d.id = w.discount_id`

func scanWorkshop(row interface{ Scan(...any) error }) (*model.Workshop, error) {
	var (
		w           model.Workshop
		settingsSet bool
		fs          model.FinancialSettings
		nd          nullDiscount
	)
	dest := []any{&w.ID, &w.EventID, &w.Title, &w.Description, &w.Capacity, &w.ParticipantCount,
		&w.StartsAt, &w.EndsAt, &w.CreatedAt, &w.UpdatedAt, &settingsSet, &fs.IsFree, &fs.Price}
	if err := row.Scan(append(dest, nd.dest()...)...); err != nil {
		return nil, err
	}
	if settingsSet {
		fs.Discount = nd.discount()
		w.Financial = &fs
	}
	return &w, nil
}

// GetByID returns ErrWorkshopNotFound if there is no matching row.
func (r *WorkshopRepo) GetByID(ctx context.Context, id uint64) (*model.Workshop, error) {
	w, err := scanWorkshop(r.db.QueryRowContext(ctx, workshopSelect+` WHERE w.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkshopNotFound
	}
	return w, err
}

// ListByEvent returns the workshops of an event ordered by start time.
func (r *WorkshopRepo) ListByEvent(ctx context.Context, eventID uint64) ([]*model.Workshop, error) {
	rows, err := r.db.QueryContext(ctx, workshopSelect+` WHERE w.event_id = ? ORDER BY w.starts_at, w.id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Workshop
	for rows.Next() {
		w, err := scanWorkshop(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// SetFinancial stores the financial settings of a workshop.  A non-nil
// discount replaces the embedded one.
func (r *WorkshopRepo) SetFinancial(ctx context.Context, workshopID uint64, isFree bool, price int64, d *model.Discount) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var old sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT discount_id FROM workshops WHERE id = ? FOR UPDATE`, workshopID).Scan(&old)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrWorkshopNotFound
			}
			return err
		}
		var discountID any = old
		if d != nil {
			d.WorkshopID = &workshopID
			if err := insertDiscountTx(ctx, tx, d); err != nil {
				return err
			}
			discountID = d.ID
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE workshops SET settings_set = 1, is_free = ?, price = ?, discount_id = ? WHERE id = ?`,
			isFree, price, discountID, workshopID); err != nil {
			return err
		}
		if d != nil && old.Valid {
			_, err = tx.ExecContext(ctx, `DELETE FROM discounts WHERE id = ?`, old.Int64)
		}
		return err
	})
}

// ClearDiscount removes the embedded discount of a workshop.
func (r *WorkshopRepo) ClearDiscount(ctx context.Context, workshopID uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var old sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT discount_id FROM workshops WHERE id = ? FOR UPDATE`, workshopID).Scan(&old)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrWorkshopNotFound
			}
			return err
		}
		if !old.Valid {
			return ErrDiscountNotFound
		}
		if _, err := tx.ExecContext(ctx, `UPDATE workshops SET discount_id = NULL WHERE id = ?`, workshopID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM discounts WHERE id = ?`, old.Int64)
		return err
	})
}
