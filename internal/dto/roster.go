package dto

// RosterEntryRequest is one student row in a roster creation payload.
type RosterEntryRequest struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Alias     *string `json:"alias,omitempty"`
}

// CreateRosterRequest creates a roster from an inline student list.
type CreateRosterRequest struct {
	Course  string               `json:"course"`
	Entries []RosterEntryRequest `json:"entries"`
}

// SetAliasRequest assigns (or clears, with null) the alias for one entry.
type SetAliasRequest struct {
	Alias *string `json:"alias"`
}
