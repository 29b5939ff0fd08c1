package model

import "time"

// PropertyKind names a purchasable feature of an event.
type PropertyKind string

const (
	PropertySession  PropertyKind = "session"
	PropertyWorkshop PropertyKind = "workshop"
)

// Event privacy values.
const (
	PrivacyPublic  = "PUBLIC"
	PrivacyPrivate = "PRIVATE"
)

// Event represents an event created by an owner.  An event is a time
// window that hosts sessions and workshops.  Each kind of sub-resource
// is governed by an EventProperty describing its capacity and its time
// budget.
//
// Fields:
//  ID          – primary key identifier.
//  OwnerID     – user who created the event.
//  Name        – display name.
//  Description – free text shown on the event page.
//  Category    – optional category label.
//  Privacy     – PUBLIC or PRIVATE (private events are limited to
//                the owner's connections).
//  StartsAt    – when the event opens.
//  EndsAt      – when the event closes (must be after StartsAt).
//  IsPublished – whether clients may register.
//  Properties  – session/workshop properties keyed by kind.
type Event struct {
	ID          uint64                          `json:"id"`           // events.id
	OwnerID     uint64                          `json:"owner_id"`     // events.owner_id
	Name        string                          `json:"name"`         // events.name
	Description string                          `json:"description"`  // events.description
	Category    string                          `json:"category"`     // events.category
	Privacy     string                          `json:"privacy"`      // events.privacy
	StartsAt    time.Time                       `json:"starts_at"`    // events.starts_at
	EndsAt      time.Time                       `json:"ends_at"`      // events.ends_at
	IsPublished bool                            `json:"is_published"` // events.is_published
	Properties  map[PropertyKind]*EventProperty `json:"properties"`
	CreatedAt   time.Time                       `json:"created_at"` // events.created_at
	UpdatedAt   time.Time                       `json:"updated_at"` // events.updated_at
}

// Property returns the property of the given kind, or nil.
func (e *Event) Property(kind PropertyKind) *EventProperty {
	if e == nil || e.Properties == nil {
		return nil
	}
	return e.Properties[kind]
}

// Contains reports whether [start, end] lies inside the event window.
func (e *Event) Contains(start, end time.Time) bool {
	return !start.Before(e.StartsAt) && !end.After(e.EndsAt)
}

// EventProperty mirrors a row of the event_properties table.
//
// Fields:
//  Kind             – session or workshop.
//  Active           – inactive properties reject sub-resources.
//  MaxParticipants  – participant ceiling for the property.
//  TotalSeconds     – time budget in seconds (hours * 3600 at creation).
//  RemainingSeconds – unscheduled part of the budget; never above TotalSeconds.
//  ParticipantCount – registrations counted so far.
//  Financial        – nil until the owner sets financial settings.
type EventProperty struct {
	Kind             PropertyKind       `json:"kind"`              // event_properties.kind
	Active           bool               `json:"active"`            // event_properties.active
	MaxParticipants  int                `json:"max_participants"`  // event_properties.max_participants
	TotalSeconds     int64              `json:"total_seconds"`     // event_properties.total_seconds
	RemainingSeconds int64              `json:"remaining_seconds"` // event_properties.remaining_seconds
	ParticipantCount int                `json:"participant_count"` // event_properties.participant_count
	Financial        *FinancialSettings `json:"financial_settings,omitempty"`
}

// FinancialSettings describes how a session or workshop is charged.
// Discount is the embedded SESSION/WORKSHOP discount, when one is set.
type FinancialSettings struct {
	IsFree   bool      `json:"is_free"`
	Price    int64     `json:"price"`
	Discount *Discount `json:"discount,omitempty"`
}

// Event operator types.
const (
	OperatorAdmin   = "ADMIN"
	OperatorSpeaker = "SPEAKER"
	OperatorTeacher = "TEACHER"
)

// EventOperator links a user to an event with an operator role.  Only
// ADMIN operators share the owner's management rights.
type EventOperator struct {
	EventID   uint64    `json:"event_id"` // event_operators.event_id
	UserID    uint64    `json:"user_id"`  // event_operators.user_id
	Type      string    `json:"type"`     // event_operators.type
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"` // event_operators.created_at
}

// Session is a scheduled block inside an event.  Its duration is
// consumed from the session property's time budget.
type Session struct {
	ID          uint64    `json:"id"`          // sessions.id
	EventID     uint64    `json:"event_id"`    // sessions.event_id
	Title       string    `json:"title"`       // sessions.title
	Description string    `json:"description"` // sessions.description
	StartsAt    time.Time `json:"starts_at"`   // sessions.starts_at
	EndsAt      time.Time `json:"ends_at"`     // sessions.ends_at
	CreatedAt   time.Time `json:"created_at"`  // sessions.created_at
	UpdatedAt   time.Time `json:"updated_at"`  // sessions.updated_at
}

// Duration returns the length of the session in whole seconds.
func (s *Session) Duration() int64 { return durationSeconds(s.StartsAt, s.EndsAt) }

// Workshop is a separately purchasable block inside an event.  Unlike
// sessions, each workshop carries its own financial settings.
type Workshop struct {
	ID               uint64             `json:"id"`                // workshops.id
	EventID          uint64             `json:"event_id"`          // workshops.event_id
	Title            string             `json:"title"`             // workshops.title
	Description      string             `json:"description"`       // workshops.description
	Capacity         int                `json:"capacity"`          // workshops.capacity
	ParticipantCount int                `json:"participant_count"` // workshops.participant_count
	StartsAt         time.Time          `json:"starts_at"`         // workshops.starts_at
	EndsAt           time.Time          `json:"ends_at"`           // workshops.ends_at
	Financial        *FinancialSettings `json:"financial_settings,omitempty"`
	CreatedAt        time.Time          `json:"created_at"` // workshops.created_at
	UpdatedAt        time.Time          `json:"updated_at"` // workshops.updated_at
}

// Duration returns the length of the workshop in whole seconds.
func (w *Workshop) Duration() int64 { return durationSeconds(w.StartsAt, w.EndsAt) }

func durationSeconds(start, end time.Time) int64 {
	return int64(end.Sub(start) / time.Second)
}
