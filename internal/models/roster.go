package models

import (
	"strings"
	"time"
)

// Roster is the authoritative student list for a course.
type Roster struct {
	ID        string    `db:"id" json:"id"`
	Course    string    `db:"course" json:"course"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RosterEntry is a single student row. Alias is the one optional display
// name observed in meeting data that maps to this canonical student;
// multiple aliases per student are unsupported.
type RosterEntry struct {
	ID        string    `db:"id" json:"id"`
	RosterID  string    `db:"roster_id" json:"roster_id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Alias     *string   `db:"alias" json:"alias,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FullName returns the canonical "First Last" name for the entry.
func (e RosterEntry) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// RosterDetail extends a roster with its entries.
type RosterDetail struct {
	Roster
	Entries []RosterEntry `json:"entries"`
}
