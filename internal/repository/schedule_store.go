package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/eventhub/internal/model"
)

// ScheduleWriter changes sessions or workshops together with the time
// budget of their event property.  Lock* reads hold the row until the
// transaction ends, so durations taken from them are current.
type ScheduleWriter interface {
	LockProperty(ctx context.Context, eventID uint64, kind model.PropertyKind) (*model.EventProperty, error)
	LockSession(ctx context.Context, id uint64) (*model.Session, error)
	LockWorkshop(ctx context.Context, id uint64) (*model.Workshop, error)
	ConsumeSeconds(ctx context.Context, eventID uint64, kind model.PropertyKind, delta int64) error
	SetRemainingSeconds(ctx context.Context, eventID uint64, kind model.PropertyKind, seconds int64) error
	CreateSession(ctx context.Context, s *model.Session) error
	UpdateSession(ctx context.Context, s *model.Session) error
	DeleteSession(ctx context.Context, id uint64) error
	CreateWorkshop(ctx context.Context, w *model.Workshop) error
	UpdateWorkshop(ctx context.Context, w *model.Workshop) error
	DeleteWorkshop(ctx context.Context, id uint64) error
}

// ScheduleStore opens the transaction a schedule change commits in.
type ScheduleStore struct {
	db *sql.DB
}

// NewScheduleStore constructs a ScheduleStore.
func NewScheduleStore(db *sql.DB) *ScheduleStore { return &ScheduleStore{db: db} }

// RunInTx calls fn with a writer bound to a fresh transaction.
func (s *ScheduleStore) RunInTx(ctx context.Context, fn func(ScheduleWriter) error) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&scheduleTx{tx: tx})
	})
}

type scheduleTx struct {
	tx *sql.Tx
}

// ConsumeSeconds subtracts delta from the remaining budget.  A negative
// delta gives time back.  The update is refused when the result would
// leave the [0, total] range.
func (w *scheduleTx) ConsumeSeconds(ctx context.Context, eventID uint64, kind model.PropertyKind, delta int64) error {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE event_properties SET remaining_seconds = remaining_seconds - ?
		 WHERE event_id = ? AND kind = ? AND remaining_seconds - ? BETWEEN 0 AND total_seconds`,
		delta, eventID, kind, delta)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if delta == 0 {
			return w.propertyExists(ctx, eventID, kind)
		}
		return ErrBudgetExceeded
	}
	return nil
}

// propertyExists distinguishes a no-op update from a missing row.
func (w *scheduleTx) propertyExists(ctx context.Context, eventID uint64, kind model.PropertyKind) error {
	var n int
	if err := w.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_properties WHERE event_id = ? AND kind = ?`, eventID, kind).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// SetRemainingSeconds stores a budget computed from a locked property.
func (w *scheduleTx) SetRemainingSeconds(ctx context.Context, eventID uint64, kind model.PropertyKind, seconds int64) error {
	_, err := w.tx.ExecContext(ctx,
		`UPDATE event_properties SET remaining_seconds = LEAST(total_seconds, GREATEST(0, ?))
		 WHERE event_id = ? AND kind = ?`, seconds, eventID, kind)
	return err
}

func (w *scheduleTx) LockProperty(ctx context.Context, eventID uint64, kind model.PropertyKind) (*model.EventProperty, error) {
	p := &model.EventProperty{Kind: kind}
	err := w.tx.QueryRowContext(ctx,
		`SELECT active, max_participants, total_seconds, remaining_seconds, participant_count
		 FROM event_properties WHERE event_id = ? AND kind = ? FOR UPDATE`, eventID, kind).
		Scan(&p.Active, &p.MaxParticipants, &p.TotalSeconds, &p.RemainingSeconds, &p.ParticipantCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (w *scheduleTx) LockSession(ctx context.Context, id uint64) (*model.Session, error) {
	s := &model.Session{ID: id}
	err := w.tx.QueryRowContext(ctx,
		`SELECT event_id, title, description, starts_at, ends_at, created_at, updated_at
		 FROM sessions WHERE id = ? FOR UPDATE`, id).
		Scan(&s.EventID, &s.Title, &s.Description, &s.StartsAt, &s.EndsAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (w *scheduleTx) LockWorkshop(ctx context.Context, id uint64) (*model.Workshop, error) {
	ws := &model.Workshop{ID: id}
	err := w.tx.QueryRowContext(ctx,
		`SELECT event_id, title, description, capacity, participant_count, starts_at, ends_at, created_at, updated_at
		 FROM workshops WHERE id = ? FOR UPDATE`, id).
		Scan(&ws.EventID, &ws.Title, &ws.Description, &ws.Capacity, &ws.ParticipantCount,
			&ws.StartsAt, &ws.EndsAt, &ws.CreatedAt, &ws.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkshopNotFound
	}
	if err != nil {
		return nil, err
	}
	return ws, nil
}

func (w *scheduleTx) CreateSession(ctx context.Context, s *model.Session) error {
	res, err := w.tx.ExecContext(ctx,
		`INSERT INTO sessions (event_id, title, description, starts_at, ends_at) VALUES (?, ?, ?, ?, ?)`,
		s.EventID, s.Title, s.Description, s.StartsAt, s.EndsAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return w.tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM sessions WHERE id = ?`, s.ID).
		Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (w *scheduleTx) UpdateSession(ctx context.Context, s *model.Session) error {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE sessions SET title = ?, description = ?, starts_at = ?, ends_at = ? WHERE id = ?`,
		s.Title, s.Description, s.StartsAt, s.EndsAt, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := w.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, s.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrSessionNotFound
		}
	}
	return nil
}

func (w *scheduleTx) DeleteSession(ctx context.Context, id uint64) error {
	res, err := w.tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (w *scheduleTx) CreateWorkshop(ctx context.Context, ws *model.Workshop) error {
	res, err := w.tx.ExecContext(ctx,
		`INSERT INTO workshops (event_id, title, description, capacity, starts_at, ends_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ws.EventID, ws.Title, ws.Description, ws.Capacity, ws.StartsAt, ws.EndsAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ws.ID = uint64(id)
	return w.tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM workshops WHERE id = ?`, ws.ID).
		Scan(&ws.CreatedAt, &ws.UpdatedAt)
}

// UpdateWorkshop refuses a capacity below the current participant count
// with ErrConflict.
func (w *scheduleTx) UpdateWorkshop(ctx context.Context, ws *model.Workshop) error {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE workshops SET title = ?, description = ?, capacity = ?, starts_at = ?, ends_at = ?
		 WHERE id = ? AND (? = 0 OR participant_count <= ?)`,
		ws.Title, ws.Description, ws.Capacity, ws.StartsAt, ws.EndsAt, ws.ID, ws.Capacity, ws.Capacity)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var participants int
		err := w.tx.QueryRowContext(ctx, `SELECT participant_count FROM workshops WHERE id = ?`, ws.ID).Scan(&participants)
		if err == sql.ErrNoRows {
			return ErrWorkshopNotFound
		}
		if err != nil {
			return err
		}
		if ws.Capacity > 0 && participants > ws.Capacity {
			return ErrConflict
		}
	}
	return nil
}

func (w *scheduleTx) DeleteWorkshop(ctx context.Context, id uint64) error {
	res, err := w.tx.ExecContext(ctx, `DELETE FROM workshops WHERE id = ? AND participant_count = 0`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := w.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM workshops WHERE id = ?`, id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrWorkshopNotFound
		}
		return ErrConflict
	}
	return nil
}
