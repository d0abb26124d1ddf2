package pv

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// TokenGenerator produces version tokens. Tokens must be unique per project
// and must match the name pattern.
type TokenGenerator interface {
	New(at time.Time) string
}

// RandomTokenGenerator produces "<unix seconds>-<6 hex chars>" tokens.
// The random suffix keeps tokens unique for versions created in the same second.
type RandomTokenGenerator struct{}

func (RandomTokenGenerator) New(at time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return fmt.Sprintf("%d-%s", at.Unix(), suffix)
}
