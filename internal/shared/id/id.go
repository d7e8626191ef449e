// Package id provides ID generation for modbridge.
//
// Request and correlation IDs are ULIDs drawn from monotonic entropy, so
// IDs from one generator sort in creation order even within a millisecond.
// Tab IDs are random UUIDs: tabs have no useful ordering and are only ever
// looked up by equality.
//
// Prefixes keep logs readable: req_*, tab_*, and a per-context prefix for
// correlation IDs (page_*, bridge_*).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// RequestID identifies an HTTP API request
type RequestID string

// TabID identifies a page attached to the coordinator
type TabID string

const (
	RequestPrefix = "req"
	TabPrefix     = "tab"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by monotonic entropy.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: ulid.Monotonic(entropy, 0),
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewTabID generates a new tab ID
func NewTabID() TabID {
	return TabID(TabPrefix + "_" + uuid.NewString())
}

func (id RequestID) String() string { return string(id) }
func (id TabID) String() string     { return string(id) }

// Correlator issues correlation IDs for one messaging context. IDs are
// strictly increasing for the lifetime of the Correlator; uniqueness across
// contexts comes from the prefix and the ULID entropy.
type Correlator struct {
	prefix string
	gen    *Generator
}

// NewCorrelator creates a correlator whose IDs start with prefix.
func NewCorrelator(prefix string) *Correlator {
	return &Correlator{prefix: prefix, gen: NewGenerator()}
}

// Next returns the next correlation ID.
func (c *Correlator) Next() string {
	return c.gen.GenerateWithPrefix(c.prefix)
}

// IsValid checks if an ID string is a valid ULID, with or without a prefix
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Parse parses a ULID string, ignoring any prefix
func Parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.Parse(id)
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
