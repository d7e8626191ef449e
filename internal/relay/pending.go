package relay

import (
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/modbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"go.uber.org/zap"
)

// DefaultRequestTimeout bounds an unanswered Channel B request.
const DefaultRequestTimeout = 10 * time.Second

// SettleFunc receives exactly one of a response or an error.
type SettleFunc func(resp *protocol.Response, err error)

type pendingEntry struct {
	settle SettleFunc
	timer  *time.Timer
}

// Pending tracks in-flight requests by correlation id. Every entry leaves
// the table exactly once: resolved, rejected, timed out or closed.
type Pending struct {
	timeout time.Duration
	log     *zap.Logger
	metrics *monitoring.Metrics

	mu      sync.Mutex
	entries map[string]*pendingEntry
	closed  bool
}

// NewPending creates a table. A non-positive timeout uses
// DefaultRequestTimeout.
func NewPending(timeout time.Duration, log *zap.Logger, metrics *monitoring.Metrics) *Pending {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Pending{
		timeout: timeout,
		log:     logging.OrNop(log),
		metrics: metrics,
		entries: make(map[string]*pendingEntry),
	}
}

// Timeout returns the per-entry deadline.
func (p *Pending) Timeout() time.Duration {
	return p.timeout
}

// Add registers id. settle runs once, outside any lock.
func (p *Pending) Add(id string, settle SettleFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if _, exists := p.entries[id]; exists {
		return fmt.Errorf("correlation id %s already pending: %w", id, types.ErrInvalid)
	}
	entry := &pendingEntry{settle: settle}
	p.entries[id] = entry
	entry.timer = time.AfterFunc(p.timeout, func() { p.expire(id) })
	p.metrics.SetPending(len(p.entries))
	return nil
}

// Resolve settles id with resp. It reports false for unknown ids.
func (p *Pending) Resolve(id string, resp *protocol.Response) bool {
	entry := p.take(id)
	if entry == nil {
		return false
	}
	entry.settle(resp, nil)
	return true
}

// Reject settles id with err.
func (p *Pending) Reject(id string, err error) bool {
	entry := p.take(id)
	if entry == nil {
		return false
	}
	entry.settle(nil, err)
	return true
}

// Len returns the number of in-flight requests.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Close rejects everything still pending with ErrClosed.
func (p *Pending) Close() {
	p.mu.Lock()
	p.closed = true
	entries := p.entries
	p.entries = make(map[string]*pendingEntry)
	p.metrics.SetPending(0)
	p.mu.Unlock()

	for _, entry := range entries {
		entry.timer.Stop()
		entry.settle(nil, ErrClosed)
	}
}

func (p *Pending) take(id string) *pendingEntry {
	p.mu.Lock()
	entry, ok := p.entries[id]
	if ok {
		delete(p.entries, id)
		p.metrics.SetPending(len(p.entries))
	}
	p.mu.Unlock()

	if !ok {
		return nil
	}
	entry.timer.Stop()
	return entry
}

func (p *Pending) expire(id string) {
	entry := p.take(id)
	if entry == nil {
		return
	}
	p.metrics.IncPendingTimeouts()
	p.log.Warn("request timed out", zap.String("id", id), zap.Duration("timeout", p.timeout))
	entry.settle(nil, fmt.Errorf("request %s after %s: %w", id, p.timeout, types.ErrTimeout))
}
