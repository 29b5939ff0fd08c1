package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/iliyamo/eventhub/internal/model"
)

// AgendaRepo stores the personal agenda users keep for events.
type AgendaRepo struct {
	db *sql.DB
}

// NewAgendaRepo constructs an AgendaRepo.
func NewAgendaRepo(db *sql.DB) *AgendaRepo { return &AgendaRepo{db: db} }

// Replace swaps the user's items for an event with items, keeping their
// order.  An empty slice clears the agenda.
func (r *AgendaRepo) Replace(ctx context.Context, userID, eventID uint64, items []model.AgendaItem) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM user_agenda WHERE user_id = ? AND event_id = ?`, userID, eventID); err != nil {
			return err
		}
		for i, it := range items {
			ops, err := encodeOperatorIDs(it.OperatorIDs)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO user_agenda
				 (user_id, event_id, item_id, position, item_date, starts_at, ends_at, description, operator_ids)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				userID, eventID, it.ID, i, it.Date, it.StartsAt, it.EndsAt, it.Description, ops)
			if isDuplicate(err) {
				return ErrDuplicateEntry
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns the user's items for an event in stored order.
func (r *AgendaRepo) List(ctx context.Context, userID, eventID uint64) ([]model.AgendaItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT item_id, item_date, starts_at, ends_at, description, operator_ids
		 FROM user_agenda WHERE user_id = ? AND event_id = ? ORDER BY position`, userID, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.AgendaItem{}
	for rows.Next() {
		var (
			it                 model.AgendaItem
			date, starts, ends sql.NullTime
			ops                []byte
		)
		if err := rows.Scan(&it.ID, &date, &starts, &ends, &it.Description, &ops); err != nil {
			return nil, err
		}
		it.Date, it.StartsAt, it.EndsAt = nullTime(date), nullTime(starts), nullTime(ends)
		if it.OperatorIDs, err = decodeOperatorIDs(ops); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func encodeOperatorIDs(ids []uint64) (string, error) {
	if ids == nil {
		ids = []uint64{}
	}
	b, err := json.Marshal(ids)
	return string(b), err
}

func decodeOperatorIDs(b []byte) ([]uint64, error) {
	var ids []uint64
	if len(b) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
