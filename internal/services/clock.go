package services

import (
	"time"

	"github.com/google/uuid"
)

// Services take their clock and id generator as optional func fields so tests
// can pin both. A nil func falls back to the wall clock or a random UUID.

func nowFrom(f func() time.Time) time.Time {
	if f != nil {
		return f().UTC()
	}
	return time.Now().UTC()
}

func idFrom(f func() string) string {
	if f != nil {
		return f()
	}
	return uuid.NewString()
}
