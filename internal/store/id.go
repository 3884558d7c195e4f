package store

import "github.com/google/uuid"

// Identifiers are persisted as their canonical text form. The empty string
// encodes uuid.Nil (optional references such as merged_into).

// FormatID renders id for storage.
func FormatID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

// ParseID reads a stored identifier; malformed values come back Nil.
func ParseID(s string) uuid.UUID {
	if s == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}
