package domain

import "time"

// TicketID is the opaque identifier a ticket carries through the whole
// pipeline. Zendesk-style numeric IDs pass through as strings unchanged.
type TicketID string

// Comment is a single entry in a ticket's conversation thread, in posting
// order.
type Comment struct {
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	Body      string    `json:"body"`
	Public    bool      `json:"public"`
}

// RawTicket is the enriched ticket as fetched from the ticketing backend.
// It is never mutated after the fetch stage creates it.
type RawTicket struct {
	Subject      string            `json:"subject"`
	Description  string            `json:"description"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Comments     []Comment         `json:"comments"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

// Synthesis is the four-field distillation of a ticket produced by the
// synthesis stage. Fields the model did not provide are set to
// SectionUnavailable, never left empty.
type Synthesis struct {
	Issue      string `json:"issue"`
	RootCause  string `json:"root_cause"`
	Summary    string `json:"summary"`
	Resolution string `json:"resolution"`
}

// SectionUnavailable marks a synthesis section the model reply did not
// contain.
const SectionUnavailable = "unavailable"
