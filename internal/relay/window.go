package relay

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/GriffinCanCode/modbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"go.uber.org/zap"
)

const channelB = "b"

// Listener receives every envelope posted to a Window with a known origin.
// Envelopes are shared between listeners and must not be modified.
type Listener func(env protocol.Envelope)

// Window is an in-process postMessage bus.
type Window struct {
	log     *zap.Logger
	metrics *monitoring.Metrics
	queue   *Queue[[]byte]

	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWindow creates a window and starts its dispatch goroutine.
func NewWindow(log *zap.Logger, metrics *monitoring.Metrics) *Window {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Window{
		log:       logging.OrNop(log),
		metrics:   metrics,
		queue:     NewQueue[[]byte](),
		listeners: make(map[uint64]Listener),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go w.run(ctx)
	return w
}

// PostMessage serialises env and queues it for delivery.
func (w *Window) PostMessage(env protocol.Envelope) error {
	raw, err := protocol.EncodeEnvelope(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return w.PostRaw(raw)
}

// PostRaw queues an already serialised envelope.
func (w *Window) PostRaw(raw []byte) error {
	buf := make([]byte, len(raw))
	copy(buf, raw)
	if !w.queue.Push(buf) {
		return ErrClosed
	}
	return nil
}

// AddListener registers fn and returns a function removing it.
func (w *Window) AddListener(fn Listener) (remove func()) {
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.listeners[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}

// Close stops delivery after the queued envelopes are dispatched.
func (w *Window) Close() {
	w.queue.Close()
	<-w.done
	w.cancel()
}

func (w *Window) run(ctx context.Context) {
	defer close(w.done)
	for {
		raw, ok := w.queue.Pop(ctx)
		if !ok {
			return
		}
		w.deliver(raw)
	}
}

func (w *Window) deliver(raw []byte) {
	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		w.log.Warn("dropping malformed envelope", zap.Error(err))
		w.metrics.RecordRelayDropped(channelB, "malformed")
		return
	}
	if !env.From.Known() {
		w.metrics.RecordRelayDropped(channelB, "origin")
		return
	}
	kind, ok := env.Kind()
	if !ok {
		w.log.Debug("dropping envelope without message or response", zap.String("from", string(env.From)))
		w.metrics.RecordRelayDropped(channelB, "empty")
		return
	}
	w.metrics.RecordRelayMessage(channelB, string(env.From), string(kind))

	for _, fn := range w.snapshot() {
		w.call(fn, env)
	}
}

func (w *Window) snapshot() []Listener {
	w.mu.RLock()
	defer w.mu.RUnlock()

	ids := make([]uint64, 0, len(w.listeners))
	for id := range w.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = w.listeners[id]
	}
	return out
}

func (w *Window) call(fn Listener, env protocol.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("listener panicked", zap.Any("panic", r))
		}
	}()
	fn(env)
}
