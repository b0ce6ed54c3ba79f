package store

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ID strategies accepted by NewIDGenerator.
const (
	IDStrategyUUID = "uuid"
	IDStrategyULID = "ulid"
)

// IDGenerator allocates controller ids.
type IDGenerator interface {
	NewID() string
}

// NewIDGenerator returns the generator for strategy.
func NewIDGenerator(strategy string) (IDGenerator, error) {
	switch strategy {
	case "", IDStrategyUUID:
		return UUIDGenerator{}, nil
	case IDStrategyULID:
		return NewULIDGenerator(rand.Reader), nil
	default:
		return nil, fmt.Errorf("unknown id strategy %q (expected %q or %q)", strategy, IDStrategyUUID, IDStrategyULID)
	}
}

// UUIDGenerator allocates random version 4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// ULIDGenerator allocates lexicographically sortable ULIDs. Ids created in
// the same millisecond stay ordered.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewULIDGenerator draws entropy from r.
func NewULIDGenerator(r io.Reader) *ULIDGenerator {
	return &ULIDGenerator{
		entropy: ulid.Monotonic(r, 0),
		now:     time.Now,
	}
}

// WithClock replaces the timestamp source.
func (g *ULIDGenerator) WithClock(now func() time.Time) *ULIDGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
	return g
}

func (g *ULIDGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy).String()
}
