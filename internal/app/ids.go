package app

import "github.com/google/uuid"

// newMatchID returns a time-ordered UUIDv7, so ids sort by creation.
func newMatchID() string {
	return uuid.Must(uuid.NewV7()).String()
}
