package models

import "github.com/google/uuid"

// Table names as they appear on the wire and in change events.
const (
	TableUsers       = "users"
	TableGroups      = "groups"
	TableMembers     = "members"
	TablePunishments = "punishments"
	TableRecords     = "records"
	TableSuggestions = "suggestions"
	TableUnlocks     = "unlocks"
)

// Change operations.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// ChangeEvent describes one committed row change on a backend table. Every
// device subscribed to the group's feed receives the same events; consumers
// re-fetch full state rather than merging rows.
type ChangeEvent struct {
	Table   string    `json:"table"`
	Op      string    `json:"op"`
	GroupID uuid.UUID `json:"group_id"`

	// OldRow carries the pre-image for UPDATE/DELETE when the backend
	// surfaces it. DELETE payloads may be partial or missing entirely.
	OldRow map[string]any `json:"old_row,omitempty"`
	NewRow map[string]any `json:"new_row,omitempty"`
}

// RowUserID extracts a "user_id" field from a change-event row payload.
// Returns uuid.Nil and false when the field is absent or malformed.
func RowUserID(row map[string]any) (uuid.UUID, bool) {
	if row == nil {
		return uuid.Nil, false
	}
	raw, ok := row["user_id"].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
