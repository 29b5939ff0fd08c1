package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/eventhub/internal/model"
)

// SessionRepo reads sessions.  Writes go through ScheduleStore so that
// they share a transaction with the time budget update.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo constructs a SessionRepo.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionColumns = `id, event_id, title, description, starts_at, ends_at, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	if err := row.Scan(&s.ID, &s.EventID, &s.Title, &s.Description, &s.StartsAt, &s.EndsAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID returns ErrSessionNotFound if there is no matching row.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return s, err
}

// ListByEvent returns the sessions of an event ordered by start time.
func (r *SessionRepo) ListByEvent(ctx context.Context, eventID uint64) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE event_id = ? ORDER BY starts_at, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
