// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as deleting an event
// that already has invoices. Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")

// Not found sentinels.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEventNotFound      = errors.New("event not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrWorkshopNotFound   = errors.New("workshop not found")
	ErrDiscountNotFound   = errors.New("discount not found")
	ErrFriendshipNotFound = errors.New("friendship not found")
	ErrOperatorNotFound   = errors.New("operator not found")
)

// Lost conditional updates.  Each one means a concurrent request used
// up the resource between validation and write.
var (
	ErrBudgetExceeded    = errors.New("property time budget exceeded")
	ErrDiscountExhausted = errors.New("discount usage limit reached")
	ErrCapacityExceeded  = errors.New("participant capacity reached")
)

// Unique key violations.
var (
	ErrEmailExists    = errors.New("email already exists")
	ErrCodeExists     = errors.New("discount code already exists")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// isDuplicate reports a MySQL 1062 duplicate key error.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
