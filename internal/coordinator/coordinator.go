package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/modbridge/internal/domain/registry"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modbridge/internal/locale"
	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"github.com/GriffinCanCode/modbridge/internal/relay"
	"github.com/GriffinCanCode/modbridge/internal/shared/id"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/GriffinCanCode/modbridge/internal/store"
	"go.uber.org/zap"
)

// DefaultAckTimeout bounds the wait for a registryInstalled acknowledgement.
const DefaultAckTimeout = 3 * time.Second

// ErrNoTab is returned when an operation needs an attached page.
var ErrNoTab = fmt.Errorf("no page attached: %w", types.ErrNotFound)

// Scripts resolves and forgets script sources.
type Scripts interface {
	Lookup(ctx context.Context, hash string) (string, error)
	Forget(hash string)
}

// Config holds coordinator timing.
type Config struct {
	AckTimeout time.Duration
}

// Coordinator serves attached pages.
type Coordinator struct {
	cfg      Config
	registry *registry.Manager
	scripts  Scripts
	store    *store.Store
	catalog  *locale.Catalog
	log      *zap.Logger
	metrics  *monitoring.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	epoch atomic.Uint64

	mu     sync.Mutex
	tabs   map[id.TabID]*tab
	active id.TabID
}

type tab struct {
	id       id.TabID
	conn     *relay.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	attached time.Time

	// Pushes and propagation to this page, drained in order by one worker.
	outbox *relay.Queue[func(ctx context.Context)]

	// Guarded by Coordinator.mu.
	ready bool
	acks  map[uint64]chan struct{}
}

// New creates a coordinator.
func New(cfg Config, reg *registry.Manager, scripts Scripts, st *store.Store, catalog *locale.Catalog, log *zap.Logger, metrics *monitoring.Metrics) *Coordinator {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	if catalog == nil {
		catalog = locale.NewCatalog("en")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:      cfg,
		registry: reg,
		scripts:  scripts,
		store:    st,
		catalog:  catalog,
		log:      logging.OrNop(log),
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
		tabs:     make(map[id.TabID]*tab),
	}
}

// Attach registers a page connection and returns the handler serving it.
func (c *Coordinator) Attach(conn *relay.Conn) (id.TabID, relay.Handler) {
	ctx, cancel := context.WithCancel(c.ctx)
	t := &tab{
		id:       id.NewTabID(),
		conn:     conn,
		ctx:      ctx,
		cancel:   cancel,
		attached: time.Now(),
		outbox:   relay.NewQueue[func(ctx context.Context)](),
		acks:     make(map[uint64]chan struct{}),
	}

	c.mu.Lock()
	c.tabs[t.id] = t
	n := len(c.tabs)
	c.mu.Unlock()

	c.wg.Add(1)
	go c.drain(t)

	c.metrics.SetTabs(n)
	c.log.Info("page attached", zap.String("tab", t.id.String()))
	return t.id, relay.HandlerFunc(func(ctx context.Context, msg protocol.Message) *protocol.Response {
		return c.handle(ctx, t, msg)
	})
}

// Detach forgets a page and stops work queued for it.
func (c *Coordinator) Detach(tabID id.TabID) {
	c.mu.Lock()
	t, ok := c.tabs[tabID]
	if ok {
		delete(c.tabs, tabID)
		if c.active == tabID {
			c.active = c.latestReadyLocked()
		}
	}
	n := len(c.tabs)
	c.mu.Unlock()

	if !ok {
		return
	}
	t.cancel()
	t.outbox.Close()
	c.metrics.SetTabs(n)
	c.log.Info("page detached", zap.String("tab", tabID.String()))
}

// Tabs lists attached pages.
func (c *Coordinator) Tabs() []types.TabInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]types.TabInfo, 0, len(c.tabs))
	for _, t := range c.tabs {
		out = append(out, types.TabInfo{ID: t.id.String(), Active: t.id == c.active, Ready: t.ready})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close stops background work and waits for it.
func (c *Coordinator) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}

// markReady marks t as announced and makes it the active page.
func (c *Coordinator) markReady(t *tab) {
	c.mu.Lock()
	t.ready = true
	c.active = t.id
	c.mu.Unlock()
}

// latestReadyLocked picks the most recently attached ready tab. Callers hold mu.
func (c *Coordinator) latestReadyLocked() id.TabID {
	var latest *tab
	for _, t := range c.tabs {
		if t.ready && (latest == nil || t.attached.After(latest.attached)) {
			latest = t
		}
	}
	if latest == nil {
		return ""
	}
	return latest.id
}

func (c *Coordinator) readyTabs() []*tab {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*tab, 0, len(c.tabs))
	for _, t := range c.tabs {
		if t.ready {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].attached.Before(out[j].attached) })
	return out
}

func (c *Coordinator) activeTab() (*tab, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tabs[c.active]
	if !ok {
		return nil, ErrNoTab
	}
	return t, nil
}

func (c *Coordinator) isReady(t *tab) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return t.ready
}

// drain runs t's queued work one item at a time until the page detaches.
func (c *Coordinator) drain(t *tab) {
	defer c.wg.Done()
	for {
		fn, ok := t.outbox.Pop(t.ctx)
		if !ok {
			return
		}
		fn(t.ctx)
	}
}

// enqueue schedules fn after everything already queued for t.
func (c *Coordinator) enqueue(t *tab, fn func(ctx context.Context)) {
	if !t.outbox.Push(fn) {
		c.log.Debug("dropping work for detached page", zap.String("tab", t.id.String()))
	}
}

// enqueueWait schedules fn like enqueue and waits for its result.
func (c *Coordinator) enqueueWait(ctx context.Context, t *tab, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	if !t.outbox.Push(func(tctx context.Context) { done <- fn(tctx) }) {
		return ErrNoTab
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ctx.Done():
		return ErrNoTab
	}
}

func (c *Coordinator) push(ctx context.Context, t *tab, action protocol.Action, data interface{}) error {
	msg, err := protocol.NewMessage(action, data)
	if err != nil {
		return err
	}
	if err := t.conn.Push(ctx, msg); err != nil {
		return fmt.Errorf("push %s to %s: %w", action, t.id, err)
	}
	return nil
}

func (c *Coordinator) broadcast(action protocol.Action, data interface{}) {
	for _, t := range c.readyTabs() {
		t := t
		c.enqueue(t, func(ctx context.Context) {
			if err := c.push(ctx, t, action, data); err != nil {
				c.log.Warn("broadcast failed", zap.String("tab", t.id.String()), zap.Error(err))
			}
		})
	}
}

// loadScripts pushes the remote registry to t.
func (c *Coordinator) loadScripts(ctx context.Context, t *tab, force bool) error {
	scripts, err := c.registry.ActiveScripts(ctx)
	if err != nil {
		return err
	}
	return c.push(ctx, t, protocol.ActionLoadScripts, protocol.LoadScriptsRequest{Scripts: scripts, Force: force})
}

// propagate installs the local registry on t, waits for the page to
// acknowledge it and then asks for each enabled mod in registry order. It
// runs on t's worker.
func (c *Coordinator) propagate(ctx context.Context, t *tab) error {
	mods, err := c.registry.LocalMods(ctx)
	if err != nil {
		return err
	}

	epoch := c.epoch.Add(1)
	ack := c.expectAck(t, epoch)
	defer c.dropAck(t, epoch)

	if err := c.push(ctx, t, protocol.ActionRegisterLocalMods, protocol.LocalModsResult{Mods: mods, Epoch: epoch}); err != nil {
		return err
	}

	timer := time.NewTimer(c.cfg.AckTimeout)
	defer timer.Stop()
	select {
	case <-ack:
	case <-timer.C:
		c.log.Warn("page did not acknowledge local registry, continuing",
			zap.String("tab", t.id.String()), zap.Uint64("epoch", epoch))
	case <-ctx.Done():
		return ctx.Err()
	}

	for _, m := range mods {
		if !m.Enabled {
			continue
		}
		if err := c.push(ctx, t, protocol.ActionExecuteLocalMod, protocol.ExecuteLocalModRequest{Name: m.Name}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) propagateAsync(t *tab) {
	c.enqueue(t, func(ctx context.Context) {
		if err := c.propagate(ctx, t); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Warn("propagation failed", zap.String("tab", t.id.String()), zap.Error(err))
		}
	})
}

func (c *Coordinator) expectAck(t *tab, epoch uint64) <-chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	t.acks[epoch] = ch
	c.mu.Unlock()
	return ch
}

func (c *Coordinator) dropAck(t *tab, epoch uint64) {
	c.mu.Lock()
	delete(t.acks, epoch)
	c.mu.Unlock()
}

func (c *Coordinator) ack(t *tab, epoch uint64) {
	c.mu.Lock()
	ch, ok := t.acks[epoch]
	delete(t.acks, epoch)
	c.mu.Unlock()

	if ok {
		close(ch)
		return
	}
	c.log.Debug("stale registry acknowledgement", zap.String("tab", t.id.String()), zap.Uint64("epoch", epoch))
}
