package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/modbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modbridge/internal/localmods"
	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"github.com/GriffinCanCode/modbridge/internal/relay"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"go.uber.org/zap"
)

// Page is the realm the bridge bootstraps.
type Page interface {
	Install(ctx context.Context) error
}

// ManifestFunc returns the bundled local mods.
type ManifestFunc func(ctx context.Context) (*localmods.Manifest, error)

// StaticManifest always returns m.
func StaticManifest(m *localmods.Manifest) ManifestFunc {
	return func(context.Context) (*localmods.Manifest, error) { return m, nil }
}

// Bridge connects one page window to the coordinator.
type Bridge struct {
	conn     *relay.Conn
	window   *relay.Window
	page     Page
	resolver localmods.Resolver
	manifest ManifestFunc
	log      *zap.Logger

	// Page pushes, sent to the coordinator in page order off the window goroutine.
	outbox   *relay.Queue[protocol.Message]
	inflight sync.WaitGroup
}

// New creates a bridge. Run starts it.
func New(conn *relay.Conn, w *relay.Window, page Page, resolver localmods.Resolver, manifest ManifestFunc, log *zap.Logger) *Bridge {
	return &Bridge{
		conn:     conn,
		window:   w,
		page:     page,
		resolver: resolver,
		manifest: manifest,
		log:      logging.OrNop(log),
		outbox:   relay.NewQueue[protocol.Message](),
	}
}

// Run serves the coordinator connection, bootstraps the page and relays
// until ctx ends or the connection closes.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.sendPushes(ctx)
	}()

	remove := b.window.AddListener(func(env protocol.Envelope) {
		b.onEnvelope(ctx, env)
	})
	defer func() {
		remove()
		b.outbox.Close()
		b.inflight.Wait()
	}()

	served := make(chan error, 1)
	go func() { served <- b.conn.Serve(ctx, b) }()

	if err := b.start(ctx); err != nil {
		cancel()
		<-served
		return err
	}
	return <-served
}

// start injects the capability object, registers the bundled mods and
// announces the page.
func (b *Bridge) start(ctx context.Context) error {
	if err := b.page.Install(ctx); err != nil {
		return fmt.Errorf("install page: %w", err)
	}
	if err := b.registerManifest(ctx); err != nil {
		// Remote scripts still work without the bundled mods.
		b.log.Warn("could not register local mods", zap.Error(err))
	}

	msg, err := protocol.NewMessage(protocol.ActionContentScriptReady, nil)
	if err != nil {
		return err
	}
	resp, err := b.conn.Request(ctx, msg)
	if err != nil {
		return fmt.Errorf("announce page: %w", err)
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("announce page: %w", err)
	}
	b.log.Info("page ready")
	return nil
}

func (b *Bridge) registerManifest(ctx context.Context) error {
	m, err := b.manifest(ctx)
	if err != nil {
		return err
	}
	msg, err := protocol.NewMessage(protocol.ActionRegisterLocalMods, protocol.RegisterLocalModsRequest{Mods: m.Mods})
	if err != nil {
		return err
	}
	resp, err := b.conn.Request(ctx, msg)
	if err != nil {
		return err
	}
	return resp.Err()
}

// Handle serves coordinator messages.
func (b *Bridge) Handle(ctx context.Context, msg protocol.Message) *protocol.Response {
	switch msg.Action {
	case protocol.ActionPing:
		return protocol.OK(nil)

	case protocol.ActionLoadScripts, protocol.ActionRegisterLocalMods, protocol.ActionLocaleChanged:
		return b.toPage(msg)

	case protocol.ActionExecuteLocalMod:
		var req protocol.ExecuteLocalModRequest
		if err := msg.Decode(&req); err != nil {
			return protocol.Fail(err)
		}
		if err := b.executeLocalMod(ctx, req); err != nil {
			b.log.Warn("could not run local mod", zap.String("name", req.Name), zap.Error(err))
			return protocol.Fail(err)
		}
		return protocol.OK(nil)

	case protocol.ActionReloadLocalMods:
		if err := b.registerManifest(ctx); err != nil {
			b.log.Warn("could not reload local mods", zap.Error(err))
			return protocol.Fail(err)
		}
		return protocol.OK(nil)

	default:
		return protocol.Fail(fmt.Errorf("unsupported action %q: %w", msg.Action, types.ErrInvalid))
	}
}

// executeLocalMod fills in the source and config before handing the mod to
// the page.
func (b *Bridge) executeLocalMod(ctx context.Context, req protocol.ExecuteLocalModRequest) error {
	source, err := b.resolver.Source(ctx, req.Name)
	if err != nil {
		return err
	}

	msg, err := protocol.NewMessage(protocol.ActionGetLocalModConfig, protocol.GetLocalModConfigRequest{ModName: req.Name})
	if err != nil {
		return err
	}
	resp, err := b.conn.Request(ctx, msg)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	var cfg protocol.ConfigResult
	if err := resp.Decode(&cfg); err != nil {
		return err
	}

	req.Source = source
	req.Config = cfg.Config
	out, err := protocol.NewMessage(protocol.ActionExecuteLocalMod, req)
	if err != nil {
		return err
	}
	return b.post(protocol.Envelope{From: protocol.OriginExtension, Message: &out})
}

func (b *Bridge) toPage(msg protocol.Message) *protocol.Response {
	if err := b.post(protocol.Envelope{From: protocol.OriginExtension, Message: &msg}); err != nil {
		return protocol.Fail(err)
	}
	return protocol.OK(nil)
}

// onEnvelope runs on the window goroutine.
func (b *Bridge) onEnvelope(ctx context.Context, env protocol.Envelope) {
	if !env.From.FromPage() {
		return
	}
	kind, _ := env.Kind()
	switch kind {
	case protocol.KindRequest:
		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			b.forward(ctx, env)
		}()
	case protocol.KindPush:
		if !b.outbox.Push(*env.Message) {
			b.log.Debug("dropping push after shutdown", zap.String("action", string(env.Message.Action)))
		}
	}
}

// sendPushes relays queued page pushes until ctx ends.
func (b *Bridge) sendPushes(ctx context.Context) {
	for {
		msg, ok := b.outbox.Pop(ctx)
		if !ok {
			return
		}
		if err := b.conn.Push(ctx, msg); err != nil {
			b.log.Warn("could not relay push", zap.String("action", string(msg.Action)), zap.Error(err))
		}
	}
}

func (b *Bridge) forward(ctx context.Context, env protocol.Envelope) {
	resp, err := b.conn.Request(ctx, *env.Message)
	if err != nil {
		resp = protocol.Fail(err)
	}
	if err := b.post(protocol.Envelope{From: protocol.OriginExtension, ID: env.ID, Response: resp}); err != nil {
		b.log.Debug("could not answer page", zap.String("id", env.ID), zap.Error(err))
	}
}

func (b *Bridge) post(env protocol.Envelope) error {
	return b.window.PostMessage(env)
}
