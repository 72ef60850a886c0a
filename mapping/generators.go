package mapping

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// KeyGenerator produces a value for a statement's key property before the
// statement executes.
type KeyGenerator interface {
	Generate() (any, error)
}

// UUIDGenerator produces random v4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() (any, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("mapping: generating uuid: %w", err)
	}
	return id, nil
}

// UUIDv7Generator produces time-ordered v7 UUIDs.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() (any, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("mapping: generating uuidv7: %w", err)
	}
	return id, nil
}

// ULIDGenerator produces monotonic ULIDs. Safe for concurrent use.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULIDGenerator) Generate() (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), g.entropy)
	if err != nil {
		return nil, fmt.Errorf("mapping: generating ulid: %w", err)
	}
	return id, nil
}

func builtinGenerators() map[string]KeyGenerator {
	return map[string]KeyGenerator{
		"uuid":   UUIDGenerator{},
		"uuidv7": UUIDv7Generator{},
		"ulid":   NewULIDGenerator(),
	}
}
