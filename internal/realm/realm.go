package realm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/GriffinCanCode/modbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"github.com/GriffinCanCode/modbridge/internal/relay"
	"github.com/GriffinCanCode/modbridge/internal/shared/id"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"
)

// Realm is a page with a mod runtime.
type Realm struct {
	cfg     Config
	log     *zap.Logger
	metrics *monitoring.Metrics
	loop    *eventloop.EventLoop
	window  *relay.Window
	caller  *relay.Caller
	remove  func()

	closeOnce sync.Once
	closed    chan struct{}

	// Owned by the loop goroutine.
	dom       *DOM
	api       *goja.Object
	executed  map[string]*executedMod
	registry  map[string]types.LocalModRecord
	disabled  map[string]bool
	buttons   map[string]*button
	hooks     map[*goja.Object][]*hookLink
	locale    string
	messages  map[string]string
	current   string
	console   []LogEntry
	installed bool
}

// New parses page, starts the event loop and starts listening on w.
func New(cfg Config, w *relay.Window, page string, log *zap.Logger, metrics *monitoring.Metrics) (*Realm, error) {
	dom, err := ParseDOM(page)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	log = logging.OrNop(log)

	r := &Realm{
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		loop:     eventloop.NewEventLoop(eventloop.EnableConsole(false)),
		window:   w,
		caller:   relay.NewCaller(w, id.NewCorrelator("page"), cfg.RequestTimeout, log, metrics),
		closed:   make(chan struct{}),
		dom:      dom,
		executed: make(map[string]*executedMod),
		registry: make(map[string]types.LocalModRecord),
		disabled: make(map[string]bool),
		buttons:  make(map[string]*button),
		hooks:    make(map[*goja.Object][]*hookLink),
		messages: make(map[string]string),
	}

	r.loop.Start()
	if err := r.do(context.Background(), func(vm *goja.Runtime) error {
		return r.setupGlobals(vm)
	}); err != nil {
		r.loop.Terminate()
		r.caller.Close()
		return nil, err
	}
	r.remove = w.AddListener(r.onEnvelope)
	return r, nil
}

// Install creates the page containers and the capability object, then asks
// the coordinator for the current locale. Installing twice is a no-op.
func (r *Realm) Install(ctx context.Context) error {
	return r.do(ctx, func(vm *goja.Runtime) error {
		if r.installed {
			return nil
		}
		r.dom.ensureContainers()
		r.api = r.newAPI(vm)
		if err := vm.GlobalObject().Set("modloader", r.api); err != nil {
			return err
		}
		r.installed = true
		r.requestLocale()
		return nil
	})
}

// Close stops listening and terminates the loop. Pending page requests are
// rejected.
func (r *Realm) Close() error {
	r.closeOnce.Do(func() {
		if r.remove != nil {
			r.remove()
		}
		r.caller.Close()
		close(r.closed)
		r.loop.Terminate()
	})
	return nil
}

// Pending returns the number of page requests awaiting an answer.
func (r *Realm) Pending() int {
	return r.caller.Pending().Len()
}

// Eval runs code in the page's global scope and exports the result.
func (r *Realm) Eval(ctx context.Context, code string) (interface{}, error) {
	var out interface{}
	err := r.do(ctx, func(vm *goja.Runtime) error {
		v, err := vm.RunString(code)
		if err != nil {
			return err
		}
		out = exportValue(v)
		return nil
	})
	return out, err
}

// Execute runs source as the mod id. Deferred attempts keep retrying on the
// loop after Execute returns.
func (r *Realm) Execute(ctx context.Context, mod types.ModIdentifier, source string, config types.Config, force bool) (Outcome, error) {
	if err := mod.Validate(); err != nil {
		return OutcomeFailed, err
	}
	var (
		outcome Outcome
		execErr error
	)
	err := r.do(ctx, func(vm *goja.Runtime) error {
		outcome, execErr = r.execute(vm, execJob{id: mod, source: source, config: config, force: force})
		return nil
	})
	if err != nil {
		return OutcomeFailed, err
	}
	return outcome, execErr
}

// Executed returns the mod if it ran at least once.
func (r *Realm) Executed(ctx context.Context, mod types.ModIdentifier) (ExecutedMod, bool, error) {
	var (
		out ExecutedMod
		ok  bool
	)
	err := r.do(ctx, func(vm *goja.Runtime) error {
		m, found := r.executed[mod.String()]
		if !found {
			return nil
		}
		ok = true
		out = ExecutedMod{ID: m.id, Exports: exportValue(m.exports), Runs: m.runs, LastRun: m.lastRun}
		return nil
	})
	return out, ok, err
}

// State reports what the page knows about a mod.
func (r *Realm) State(ctx context.Context, mod types.ModIdentifier) (types.ModState, error) {
	state := types.StateUnregistered
	err := r.do(ctx, func(vm *goja.Runtime) error {
		key := mod.String()
		switch {
		case r.executed[key] != nil:
			state = types.StateExecuted
		case r.disabled[key]:
			state = types.StateDisabled
		case mod.IsLocal():
			if rec, ok := r.registry[mod.Key]; ok {
				state = types.StateDisabled
				if rec.Enabled {
					state = types.StateEnabled
				}
			}
		}
		return nil
	})
	return state, err
}

// Registry returns the installed local registry sorted by name.
func (r *Realm) Registry(ctx context.Context) ([]types.LocalModRecord, error) {
	var out []types.LocalModRecord
	err := r.do(ctx, func(vm *goja.Runtime) error {
		out = make([]types.LocalModRecord, 0, len(r.registry))
		for _, rec := range r.registry {
			out = append(out, rec)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

// Locale returns the current locale.
func (r *Realm) Locale(ctx context.Context) (string, error) {
	var out string
	err := r.do(ctx, func(vm *goja.Runtime) error {
		out = r.locale
		return nil
	})
	return out, err
}

// HTML serialises the page document.
func (r *Realm) HTML(ctx context.Context) (string, error) {
	var out string
	err := r.do(ctx, func(vm *goja.Runtime) error {
		out = r.dom.HTML()
		return nil
	})
	return out, err
}

// Click runs the handler of a registered button.
func (r *Realm) Click(ctx context.Context, buttonID string) error {
	return r.do(ctx, func(vm *goja.Runtime) error {
		return r.click(buttonID)
	})
}

// Console returns retained console output.
func (r *Realm) Console(ctx context.Context) ([]LogEntry, error) {
	var out []LogEntry
	err := r.do(ctx, func(vm *goja.Runtime) error {
		out = append([]LogEntry{}, r.console...)
		return nil
	})
	return out, err
}

// do runs fn on the loop and waits for it.
func (r *Realm) do(ctx context.Context, fn func(vm *goja.Runtime) error) error {
	errCh := make(chan error, 1)
	if !r.loop.RunOnLoop(func(vm *goja.Runtime) { errCh <- fn(vm) }) {
		return ErrStopped
	}
	select {
	case err := <-errCh:
		return err
	case <-r.closed:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onEnvelope runs on the window goroutine.
func (r *Realm) onEnvelope(env protocol.Envelope) {
	if env.From != protocol.OriginExtension {
		return
	}
	if kind, _ := env.Kind(); kind != protocol.KindPush {
		return
	}
	msg := *env.Message
	r.loop.RunOnLoop(func(vm *goja.Runtime) {
		if err := r.handlePush(vm, msg); err != nil {
			r.log.Warn("page message failed", zap.String("action", string(msg.Action)), zap.Error(err))
		}
	})
}

func (r *Realm) handlePush(vm *goja.Runtime, msg protocol.Message) error {
	switch msg.Action {
	case protocol.ActionLoadScripts:
		var req protocol.LoadScriptsRequest
		if err := msg.Decode(&req); err != nil {
			return err
		}
		r.loadScripts(req)

	case protocol.ActionRegisterLocalMods:
		var req protocol.LocalModsResult
		if err := msg.Decode(&req); err != nil {
			return err
		}
		r.installRegistry(req.Mods)
		return r.post(protocol.ActionRegistryInstalled, protocol.RegistryInstalled{Epoch: req.Epoch})

	case protocol.ActionExecuteLocalMod:
		var req protocol.ExecuteLocalModRequest
		if err := msg.Decode(&req); err != nil {
			return err
		}
		if _, ok := r.registry[req.Name]; !ok {
			r.log.Debug("ignoring unknown local mod", zap.String("name", req.Name))
			return nil
		}
		// Failures are logged and counted inside execute.
		_, _ = r.execute(vm, execJob{id: types.Local(req.Name), source: req.Source, config: req.Config, force: req.Force})

	case protocol.ActionLocaleChanged:
		var req protocol.LocaleResult
		if err := msg.Decode(&req); err != nil {
			return err
		}
		r.setLocale(req)

	default:
		r.log.Debug("ignoring page push", zap.String("action", string(msg.Action)))
	}
	return nil
}

func (r *Realm) installRegistry(mods []types.LocalModRecord) {
	r.registry = make(map[string]types.LocalModRecord, len(mods))
	for _, m := range mods {
		r.registry[m.Name] = m
		key := m.Identifier().String()
		if m.Enabled {
			delete(r.disabled, key)
		} else {
			r.disabled[key] = true
		}
	}
}

// loadScripts fetches and runs the enabled scripts one after another.
func (r *Realm) loadScripts(req protocol.LoadScriptsRequest) {
	for _, s := range req.Scripts {
		key := s.Identifier().String()
		if s.Enabled {
			delete(r.disabled, key)
		} else {
			r.disabled[key] = true
		}
	}
	r.loadNext(req.Scripts, req.Force, 0)
}

func (r *Realm) loadNext(scripts []types.ScriptRecord, force bool, i int) {
	for ; i < len(scripts); i++ {
		s := scripts[i]
		if !s.Enabled {
			continue
		}
		if r.executed[s.Identifier().String()] != nil && !force {
			continue
		}
		break
	}
	if i >= len(scripts) {
		return
	}

	script := scripts[i]
	msg, err := protocol.NewMessage(protocol.ActionGetScript, protocol.GetScriptRequest{Hash: script.Hash})
	if err != nil {
		r.log.Error("encode getScript", zap.Error(err))
		r.loadNext(scripts, force, i+1)
		return
	}
	cid, err := r.caller.Call(protocol.OriginClient, msg, func(resp *protocol.Response, err error) {
		r.loop.RunOnLoop(func(vm *goja.Runtime) {
			var res protocol.GetScriptResult
			if err == nil {
				err = resp.Err()
			}
			if err == nil {
				err = resp.Decode(&res)
			}
			if err != nil {
				r.log.Warn("could not load script", zap.String("hash", script.Hash), zap.Error(err))
				r.metrics.RecordExecution(string(types.KindRemote), "unavailable")
			} else {
				_, _ = r.execute(vm, execJob{id: script.Identifier(), source: res.ScriptContent, config: script.Config, force: force})
			}
			r.loadNext(scripts, force, i+1)
		})
	})
	if err != nil && cid == "" {
		r.log.Warn("could not request script", zap.String("hash", script.Hash), zap.Error(err))
	}
}

func (r *Realm) setLocale(res protocol.LocaleResult) {
	if res.Locale != "" {
		r.locale = res.Locale
	}
	if res.Messages != nil {
		r.messages = res.Messages
	}
}

func (r *Realm) requestLocale() {
	msg, err := protocol.NewMessage(protocol.ActionGetLocale, nil)
	if err != nil {
		return
	}
	_, err = r.caller.Call(protocol.OriginClient, msg, func(resp *protocol.Response, err error) {
		r.loop.RunOnLoop(func(vm *goja.Runtime) {
			var res protocol.LocaleResult
			if err == nil {
				err = resp.Err()
			}
			if err == nil {
				err = resp.Decode(&res)
			}
			if err != nil {
				r.log.Debug("locale unavailable", zap.Error(err))
				return
			}
			r.setLocale(res)
		})
	})
	if err != nil {
		r.log.Debug("locale request failed", zap.Error(err))
	}
}

// post sends a push from the page.
func (r *Realm) post(action protocol.Action, data interface{}) error {
	msg, err := protocol.NewMessage(action, data)
	if err != nil {
		return err
	}
	return r.window.PostMessage(protocol.Envelope{From: protocol.OriginClient, Message: &msg})
}

func (r *Realm) click(buttonID string) error {
	b, ok := r.buttons[buttonID]
	if !ok {
		return fmt.Errorf("button %q: %w", buttonID, types.ErrNotFound)
	}
	if b.onClick == nil {
		return nil
	}
	prev := r.current
	r.current = b.owner
	defer func() { r.current = prev }()
	if _, err := b.onClick(goja.Undefined()); err != nil {
		r.log.Warn("button handler failed", zap.String("button", buttonID), zap.String("mod", b.owner), zap.Error(err))
		return fmt.Errorf("%w: button %s: %v", types.ErrExecution, buttonID, err)
	}
	return nil
}

func (r *Realm) translate(key string) string {
	if msg, ok := r.messages[key]; ok && msg != "" {
		return msg
	}
	return key
}

func (r *Realm) appendConsole(entry LogEntry) {
	if len(r.console) >= r.cfg.ConsoleLimit {
		r.console = r.console[1:]
	}
	r.console = append(r.console, entry)
}

func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}
