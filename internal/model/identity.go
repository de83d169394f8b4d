package model

import (
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the ISO-8601 layout of revision timestamps:
// microsecond precision with an explicit UTC offset.
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// IDGenerator produces record identifiers.
type IDGenerator interface {
	Generate() string
}

// Clock supplies the current time for revision timestamps.
type Clock interface {
	Now() time.Time
}

// UUIDGenerator generates random (version 4) UUID identifiers.
//
// Format: "550e8400-e29b-41d4-a716-446655440000" (36 characters)
//
// Thread-safety: UUIDGenerator is stateless and safe for concurrent use.
type UUIDGenerator struct{}

// Generate returns a new hyphenated UUID string.
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// FormatTimestamp renders t in UTC with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
