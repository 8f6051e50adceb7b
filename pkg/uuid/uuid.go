// Package uuid provides UUID v7 generation.
// UUID v7 is sortable by timestamp (better for database indexes than v4).
package uuid

import (
	guuid "github.com/google/uuid"
)

// UUID represents a UUID v7 identifier.
type UUID = guuid.UUID

// NewV7 generates a new UUID v7. It falls back to a random v4 only if the
// system random source fails.
func NewV7() UUID {
	u, err := guuid.NewV7()
	if err != nil {
		return guuid.New()
	}
	return u
}

// NewString returns a fresh v7 id in canonical form.
func NewString() string {
	return NewV7().String()
}
