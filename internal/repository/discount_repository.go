package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/eventhub/internal/model"
)

// DiscountRepo manages discounts.  CODE discounts are addressed by
// (event_id, code); embedded SESSION/WORKSHOP discounts are written
// through the owning property or workshop.
type DiscountRepo struct {
	db *sql.DB
}

// NewDiscountRepo constructs a DiscountRepo.
func NewDiscountRepo(db *sql.DB) *DiscountRepo { return &DiscountRepo{db: db} }

const discountColumns = `id, event_id, owner_id, workshop_id, type, name, COALESCE(code, ''), amount, amount_type,
	starts_at, ends_at, use_count, max_count, usage_count, created_at, updated_at`

// joinedDiscountColumns selects an optional discount aliased as d.
const joinedDiscountColumns = `d.id, d.event_id, d.owner_id, d.workshop_id, d.type, d.name, d.code, d.amount, d.amount_type,
	d.starts_at, d.ends_at, d.use_count, d.max_count, d.usage_count`

func scanDiscount(row interface{ Scan(...any) error }) (*model.Discount, error) {
	var (
		d  model.Discount
		ws sql.NullInt64
	)
	err := row.Scan(&d.ID, &d.EventID, &d.OwnerID, &ws, &d.Type, &d.Name, &d.Code, &d.Amount, &d.AmountType,
		&d.StartsAt, &d.EndsAt, &d.UseCount, &d.MaxCount, &d.UsageCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if ws.Valid {
		id := uint64(ws.Int64)
		d.WorkshopID = &id
	}
	return &d, nil
}

// nullDiscount scans the LEFT JOINed discount columns.
type nullDiscount struct {
	id, eventID, ownerID, workshopID sql.NullInt64
	typ, name, code, amountType      sql.NullString
	amount                           sql.NullInt64
	startsAt, endsAt                 sql.NullTime
	useCount                         sql.NullBool
	maxCount, usageCount             sql.NullInt64
}

func (n *nullDiscount) dest() []any {
	return []any{&n.id, &n.eventID, &n.ownerID, &n.workshopID, &n.typ, &n.name, &n.code, &n.amount, &n.amountType,
		&n.startsAt, &n.endsAt, &n.useCount, &n.maxCount, &n.usageCount}
}

func (n *nullDiscount) discount() *model.Discount {
	if !n.id.Valid {
		return nil
	}
	d := &model.Discount{
		ID:         uint64(n.id.Int64),
		EventID:    uint64(n.eventID.Int64),
		OwnerID:    uint64(n.ownerID.Int64),
		Type:       n.typ.String,
		Name:       n.name.String,
		Code:       n.code.String,
		Amount:     n.amount.Int64,
		AmountType: n.amountType.String,
		StartsAt:   n.startsAt.Time,
		EndsAt:     n.endsAt.Time,
		UseCount:   n.useCount.Bool,
		MaxCount:   int(n.maxCount.Int64),
		UsageCount: int(n.usageCount.Int64),
	}
	if n.workshopID.Valid {
		id := uint64(n.workshopID.Int64)
		d.WorkshopID = &id
	}
	return d
}

func insertDiscountTx(ctx context.Context, tx *sql.Tx, d *model.Discount) error {
	var code any
	if d.Code != "" {
		code = d.Code
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO discounts (event_id, owner_id, workshop_id, type, name, code, amount, amount_type, starts_at, ends_at, use_count, max_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.EventID, d.OwnerID, d.WorkshopID, d.Type, d.Name, code, d.Amount, d.AmountType,
		d.StartsAt, d.EndsAt, d.UseCount, d.MaxCount)
	if err != nil {
		if isDuplicate(err) {
			return ErrCodeExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	d.UsageCount = 0
	return nil
}

// Create inserts a CODE or CAMPAIGN discount.
func (r *DiscountRepo) Create(ctx context.Context, d *model.Discount) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertDiscountTx(ctx, tx, d); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM discounts WHERE id = ?`, d.ID).
			Scan(&d.CreatedAt, &d.UpdatedAt)
	})
}

// GetByCode looks a discount up by (event_id, type, code).
func (r *DiscountRepo) GetByCode(ctx context.Context, eventID uint64, discountType, code string) (*model.Discount, error) {
	d, err := scanDiscount(r.db.QueryRowContext(ctx,
		`SELECT `+discountColumns+` FROM discounts WHERE event_id = ? AND type = ? AND code = ? LIMIT 1`,
		eventID, discountType, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDiscountNotFound
	}
	return d, err
}

// ListByType returns the event's discounts of one type, oldest first.
func (r *DiscountRepo) ListByType(ctx context.Context, eventID uint64, discountType string) ([]*model.Discount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+discountColumns+` FROM discounts WHERE event_id = ? AND type = ? ORDER BY id`, eventID, discountType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Discount
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CodeExists reports whether code is taken inside the event.
func (r *DiscountRepo) CodeExists(ctx context.Context, eventID uint64, code string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM discounts WHERE event_id = ? AND code = ?`, eventID, code).Scan(&n)
	return n > 0, err
}

// DiscountPatch holds the editable discount fields.  Nil fields keep
// their stored value.
type DiscountPatch struct {
	Name     *string
	Amount   *int64
	StartsAt *time.Time
	EndsAt   *time.Time
	UseCount *bool
	MaxCount *int
}

// Apply copies the patch onto d.
func (p DiscountPatch) Apply(d *model.Discount) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Amount != nil {
		d.Amount = *p.Amount
	}
	if p.StartsAt != nil {
		d.StartsAt = *p.StartsAt
	}
	if p.EndsAt != nil {
		d.EndsAt = *p.EndsAt
	}
	if p.UseCount != nil {
		d.UseCount = *p.UseCount
	}
	if p.MaxCount != nil {
		d.MaxCount = *p.MaxCount
	}
}

// Update writes the editable fields of d.  A usage cap below the
// current usage is refused with ErrConflict.
func (r *DiscountRepo) Update(ctx context.Context, d *model.Discount) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE discounts SET name = ?, amount = ?, starts_at = ?, ends_at = ?, use_count = ?, max_count = ?
		 WHERE id = ? AND (? = 0 OR usage_count <= ?)`,
		d.Name, d.Amount, d.StartsAt, d.EndsAt, d.UseCount, d.MaxCount, d.ID, d.UseCount, d.MaxCount)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM discounts WHERE id = ?`, d.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrDiscountNotFound
		}
		// Values equal to the stored ones also report zero rows.
		var usage int
		if err := r.db.QueryRowContext(ctx, `SELECT usage_count FROM discounts WHERE id = ?`, d.ID).Scan(&usage); err != nil {
			return err
		}
		if d.UseCount && usage > d.MaxCount {
			return ErrConflict
		}
	}
	return nil
}

// Delete removes a discount by id.
func (r *DiscountRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM discounts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDiscountNotFound
	}
	return nil
}
