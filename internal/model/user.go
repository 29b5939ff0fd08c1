package model

import "time"

// User roles.  ADMIN is a platform administrator and may not register
// in events as a participant.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User represents an application user record as stored in the
// `users` table.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  Mobile       – optional unique mobile number used for OTP login.
//  PasswordHash – bcrypt hashed password (empty for OTP-only accounts).
//  Role         – USER or ADMIN.
//  FirstName    – given name, copied into invoice snapshots.
//  LastName     – family name, copied into invoice snapshots.
//  IsActive     – whether the account is active.
type User struct {
	ID           uint64    `json:"id"`         // users.id
	Email        string    `json:"email"`      // users.email
	Mobile       string    `json:"mobile"`     // users.mobile (nullable)
	PasswordHash string    `json:"-"`          // users.password_hash
	Role         string    `json:"role"`       // users.role
	FirstName    string    `json:"first_name"` // users.first_name
	LastName     string    `json:"last_name"`  // users.last_name
	IsActive     bool      `json:"is_active"`  // users.is_active
	CreatedAt    time.Time `json:"created_at"` // users.created_at
	UpdatedAt    time.Time `json:"updated_at"` // users.updated_at
}

// InvoiceOwner snapshots the user for an invoice.
func (u *User) InvoiceOwner() InvoiceOwner {
	return InvoiceOwner{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only
// the SHA-256 hash of the token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// Friendship statuses.
const (
	FriendshipPending   = "PENDING"
	FriendshipConnected = "CONNECTED"
)

// Friendship is a connection request between two users.  Private
// events are visible only to users CONNECTED with the owner.
type Friendship struct {
	ID          uint64    `json:"id"`           // friendships.id
	RequesterID uint64    `json:"requester_id"` // friendships.requester_id
	RequestedID uint64    `json:"requested_id"` // friendships.requested_id
	Status      string    `json:"status"`       // friendships.status
	CreatedAt   time.Time `json:"created_at"`   // friendships.created_at
	UpdatedAt   time.Time `json:"updated_at"`   // friendships.updated_at
}
