package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator mints identifiers for merged records and conflict groups.
// Implemented by UUIDv7Generator (production) and SequenceGenerator
// (deterministic tests).
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator mints time-ordered UUIDs. v7 keeps newly minted merge
// ids roughly chronological in index scans.
type UUIDv7Generator struct{}

// NewID returns a UUIDv7 string, falling back to v4 if the system clock
// refuses to cooperate.
func (UUIDv7Generator) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// SequenceGenerator mints "<prefix>-0001", "<prefix>-0002", ... for
// deterministic tests and golden traces.
type SequenceGenerator struct {
	Prefix string
	n      atomic.Int64
}

func (g *SequenceGenerator) NewID() string {
	return fmt.Sprintf("%s-%04d", g.Prefix, g.n.Add(1))
}
