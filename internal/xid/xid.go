package xid

import (
	"github.com/google/uuid"
)

// New returns a time-ordered identifier. V7 keeps primary key inserts
// roughly sequential; a random v4 is used if the clock source fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Valid reports whether s parses as a UUID.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
