// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the background consumers.
package queue

const (
	// RegistrationCompletedQueue receives one message per stored invoice.
	RegistrationCompletedQueue = "registration.completed"
	// OTPRequestedQueue receives one-time codes waiting for delivery.
	OTPRequestedQueue = "otp.requested"
)

// RegistrationCompletedEvent is published when a registration invoice
// has been committed.  It carries enough information for downstream
// consumers to log, notify or trigger analytics without querying the
// primary database.  DiscountedWorkshopIDs lists the workshops priced
// with their own embedded discount.
type RegistrationCompletedEvent struct {
	InvoiceID             uint64   `json:"invoice_id"`
	Reference             string   `json:"reference"`
	UserID                uint64   `json:"user_id"`
	UserEmail             string   `json:"user_email"`
	EventID               uint64   `json:"event_id"`
	EventName             string   `json:"event_name"`
	Session               bool     `json:"session"`
	WorkshopIDs           []uint64 `json:"workshop_ids"`
	DiscountedWorkshopIDs []uint64 `json:"discounted_workshop_ids,omitempty"`
	DiscountID            *uint64  `json:"discount_id,omitempty"`
	TotalCost             int64    `json:"total_cost"`
	IsFree                bool     `json:"is_free"`
	CompletedAt           string   `json:"completed_at"`
}

// OTPRequestedEvent asks the notifier to deliver a one-time login code.
type OTPRequestedEvent struct {
	Username    string `json:"username"`
	Channel     string `json:"channel"` // EMAIL or SMS
	Code        string `json:"code"`
	ExpiresAt   string `json:"expires_at"`
	RequestedAt string `json:"requested_at"`
}
