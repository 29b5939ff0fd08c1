package model

import "time"

// AgendaItem is one entry of a user's personal plan for an event.  Items
// are owned by the user and replaced as a whole per event.
type AgendaItem struct {
	ID          string     `json:"id"`                     // user_agenda.item_id
	Date        *time.Time `json:"date,omitempty"`         // user_agenda.item_date
	StartsAt    *time.Time `json:"starts_at,omitempty"`    // user_agenda.starts_at
	EndsAt      *time.Time `json:"ends_at,omitempty"`      // user_agenda.ends_at
	Description string     `json:"description"`            // user_agenda.description
	OperatorIDs []uint64   `json:"operator_ids,omitempty"` // user_agenda.operator_ids
}
