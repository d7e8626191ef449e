package pagehost

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/modbridge/internal/bridge"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modbridge/internal/localmods"
	"github.com/GriffinCanCode/modbridge/internal/realm"
	"github.com/GriffinCanCode/modbridge/internal/relay"
	"go.uber.org/zap"
)

// manifestFile is the manifest name a resolver serves next to the mods.
const manifestFile = "manifest.yaml"

// Options configures a Host.
type Options struct {
	Realm    realm.Config
	Page     string
	Resolver localmods.Resolver
	// Manifest defaults to ResolverManifest(Resolver).
	Manifest bridge.ManifestFunc
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics
}

// Host owns the window, realm and bridge of one page.
type Host struct {
	conn   *relay.Conn
	window *relay.Window
	realm  *realm.Realm
	bridge *bridge.Bridge
	log    *zap.Logger
}

// New assembles a page around conn. Run starts it.
func New(conn *relay.Conn, opts Options) (*Host, error) {
	log := logging.OrNop(opts.Logger)
	if opts.Resolver == nil {
		return nil, fmt.Errorf("pagehost: resolver required")
	}
	manifest := opts.Manifest
	if manifest == nil {
		manifest = ResolverManifest(opts.Resolver)
	}

	w := relay.NewWindow(log.Named("window"), opts.Metrics)
	r, err := realm.New(opts.Realm, w, opts.Page, log.Named("realm"), opts.Metrics)
	if err != nil {
		w.Close()
		return nil, err
	}

	return &Host{
		conn:   conn,
		window: w,
		realm:  r,
		bridge: bridge.New(conn, w, r, opts.Resolver, manifest, log.Named("bridge")),
		log:    log,
	}, nil
}

// Realm exposes the page realm for inspection.
func (h *Host) Realm() *realm.Realm {
	return h.realm
}

// Run serves the page until ctx ends or the coordinator goes away.
func (h *Host) Run(ctx context.Context) error {
	err := h.bridge.Run(ctx)
	h.log.Info("page stopped", zap.Error(err))
	return err
}

// Close releases the realm, the window and the connection.
func (h *Host) Close() error {
	h.realm.Close()
	h.window.Close()
	return h.conn.Close()
}

// ResolverManifest reads the bundled manifest through r.
func ResolverManifest(r localmods.Resolver) bridge.ManifestFunc {
	return func(ctx context.Context) (*localmods.Manifest, error) {
		raw, err := r.Source(ctx, manifestFile)
		if err != nil {
			return nil, fmt.Errorf("load manifest: %w", err)
		}
		return localmods.ParseManifest([]byte(raw))
	}
}
