package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/eventhub/internal/model"
)

// FriendshipRepo stores friend requests between users.  A pair is
// connected once the requested side accepts.
type FriendshipRepo struct {
	db *sql.DB
}

// NewFriendshipRepo constructs a FriendshipRepo.
func NewFriendshipRepo(db *sql.DB) *FriendshipRepo { return &FriendshipRepo{db: db} }

// AreConnected reports whether a and b have an accepted friendship in
// either direction.
func (r *FriendshipRepo) AreConnected(ctx context.Context, a, b uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM friendships
		 WHERE status = ? AND ((requester_id = ? AND requested_id = ?) OR (requester_id = ? AND requested_id = ?))`,
		model.FriendshipConnected, a, b, b, a).Scan(&n)
	return n > 0, err
}

// Request creates a pending friendship.  An existing row in either
// direction yields ErrDuplicateEntry.
func (r *FriendshipRepo) Request(ctx context.Context, requesterID, requestedID uint64) (*model.Friendship, error) {
	var f *model.Friendship
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM friendships
			 WHERE (requester_id = ? AND requested_id = ?) OR (requester_id = ? AND requested_id = ?) FOR UPDATE`,
			requesterID, requestedID, requestedID, requesterID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateEntry
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO friendships (requester_id, requested_id, status) VALUES (?, ?, ?)`,
			requesterID, requestedID, model.FriendshipPending)
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
		f, err = scanFriendship(tx.QueryRowContext(ctx, `SELECT `+friendshipColumns+` FROM friendships WHERE id = ?`, id))
		return err
	})
	return f, err
}

// Accept marks the pending request from requesterID to requestedID as
// connected.  Only the requested side may accept.
func (r *FriendshipRepo) Accept(ctx context.Context, requesterID, requestedID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE friendships SET status = ? WHERE requester_id = ? AND requested_id = ? AND status = ?`,
		model.FriendshipConnected, requesterID, requestedID, model.FriendshipPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFriendshipNotFound
	}
	return nil
}

// Delete removes the friendship between a and b in either direction.
func (r *FriendshipRepo) Delete(ctx context.Context, a, b uint64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM friendships WHERE (requester_id = ? AND requested_id = ?) OR (requester_id = ? AND requested_id = ?)`,
		a, b, b, a)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFriendshipNotFound
	}
	return nil
}

// ListForUser returns every friendship the user takes part in.
func (r *FriendshipRepo) ListForUser(ctx context.Context, userID uint64) ([]*model.Friendship, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+friendshipColumns+` FROM friendships WHERE requester_id = ? OR requested_id = ? ORDER BY id`,
		userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Friendship
	for rows.Next() {
		f, err := scanFriendship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const friendshipColumns = `id, requester_id, requested_id, status, created_at, updated_at`

func scanFriendship(row interface{ Scan(...any) error }) (*model.Friendship, error) {
	var f model.Friendship
	err := row.Scan(&f.ID, &f.RequesterID, &f.RequestedID, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFriendshipNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}
