package realm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/modbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"github.com/GriffinCanCode/modbridge/internal/relay"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// extension answers page requests the way the bridge would.
type extension struct {
	t *testing.T
	w *relay.Window

	mu       sync.Mutex
	handlers map[protocol.Action]func(protocol.Message) *protocol.Response
	pushes   []protocol.Message
}

func newExtension(t *testing.T, w *relay.Window) *extension {
	e := &extension{t: t, w: w, handlers: make(map[protocol.Action]func(protocol.Message) *protocol.Response)}
	remove := w.AddListener(e.listen)
	t.Cleanup(remove)
	return e
}

func (e *extension) handle(action protocol.Action, fn func(protocol.Message) *protocol.Response) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[action] = fn
}

func (e *extension) listen(env protocol.Envelope) {
	if !env.From.FromPage() {
		return
	}
	kind, _ := env.Kind()
	switch kind {
	case protocol.KindPush:
		e.mu.Lock()
		e.pushes = append(e.pushes, *env.Message)
		e.mu.Unlock()
	case protocol.KindRequest:
		e.mu.Lock()
		fn := e.handlers[env.Message.Action]
		e.mu.Unlock()
		if fn == nil {
			return
		}
		_ = e.w.PostMessage(protocol.Envelope{From: protocol.OriginExtension, ID: env.ID, Response: fn(*env.Message)})
	}
}

func (e *extension) push(action protocol.Action, data interface{}) {
	msg, err := protocol.NewMessage(action, data)
	require.NoError(e.t, err)
	require.NoError(e.t, e.w.PostMessage(protocol.Envelope{From: protocol.OriginExtension, Message: &msg}))
}

func (e *extension) received() []protocol.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]protocol.Message{}, e.pushes...)
}

func testConfig() Config {
	return Config{
		ExecTimeout:    time.Second,
		RetryInterval:  10 * time.Millisecond,
		MaxRetries:     50,
		RequestTimeout: time.Second,
	}
}

func newRealm(t *testing.T, cfg Config, metrics *monitoring.Metrics) (*Realm, *extension) {
	t.Helper()
	w := relay.NewWindow(nil, metrics)
	t.Cleanup(w.Close)

	ext := newExtension(t, w)
	r, err := New(cfg, w, "", nil, metrics)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, ext
}

func installed(t *testing.T, cfg Config) (*Realm, *extension) {
	t.Helper()
	r, ext := newRealm(t, cfg, nil)
	require.NoError(t, r.Install(context.Background()))
	return r, ext
}

func eval(t *testing.T, r *Realm, code string) interface{} {
	t.Helper()
	v, err := r.Eval(context.Background(), code)
	require.NoError(t, err)
	return v
}

func TestExecuteRunsFactoryWithContext(t *testing.T) {
	r, _ := installed(t, testConfig())
	ctx := context.Background()

	src := `
		context.exports.hash = context.hash;
		context.exports.threshold = context.config.threshold;
		context.exports.hasApi = typeof context.api.registerButton === "function";
	`
	outcome, err := r.Execute(ctx, types.Remote("abc"), src, types.Config{"threshold": 3}, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, outcome)

	mod, ok, err := r.Executed(ctx, types.Remote("abc"))
	require.NoError(t, err)
	require.True(t, ok)
	exports := mod.Exports.(map[string]interface{})
	assert.Equal(t, "abc", exports["hash"])
	assert.EqualValues(t, 3, exports["threshold"])
	assert.Equal(t, true, exports["hasApi"])
	assert.Equal(t, 1, mod.Runs)

	state, err := r.State(ctx, types.Remote("abc"))
	require.NoError(t, err)
	assert.Equal(t, types.StateExecuted, state)
}

func TestFactoryReturnValueBecomesExports(t *testing.T) {
	r, _ := installed(t, testConfig())
	ctx := context.Background()

	_, err := r.Execute(ctx, types.Local("Foo.js"), `return { name: context.name };`, nil, false)
	require.NoError(t, err)

	mod, ok, err := r.Executed(ctx, types.Local("Foo.js"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"name": "Foo.js"}, mod.Exports)
}

func TestExecuteIsIdempotentUnlessForced(t *testing.T) {
	r, _ := installed(t, testConfig())
	ctx := context.Background()
	src := `globalThis.runs = (globalThis.runs || 0) + 1;`

	outcome, err := r.Execute(ctx, types.Remote("h"), src, nil, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, outcome)

	outcome, err = r.Execute(ctx, types.Remote("h"), src, nil, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.EqualValues(t, 1, eval(t, r, "globalThis.runs"))

	outcome, err = r.Execute(ctx, types.Remote("h"), src, nil, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, outcome)
	assert.EqualValues(t, 2, eval(t, r, "globalThis.runs"))

	mod, _, err := r.Executed(ctx, types.Remote("h"))
	require.NoError(t, err)
	assert.Equal(t, 2, mod.Runs)
}

func TestFailingModDoesNotAffectOthers(t *testing.T) {
	r, _ := installed(t, testConfig())
	ctx := context.Background()

	outcome, err := r.Execute(ctx, types.Remote("bad"), `throw new Error("boom");`, nil, false)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, types.ErrExecution)
	assert.Contains(t, err.Error(), "boom")

	_, err = r.Execute(ctx, types.Remote("syntax"), `this is not javascript`, nil, false)
	assert.ErrorIs(t, err, types.ErrExecution)

	outcome, err = r.Execute(ctx, types.Remote("good"), `globalThis.good = true;`, nil, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, outcome)
	assert.Equal(t, true, eval(t, r, "globalThis.good"))

	_, ok, err := r.Executed(ctx, types.Remote("bad"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecutionTimeoutInterruptsMod(t *testing.T) {
	cfg := testConfig()
	cfg.ExecTimeout = 50 * time.Millisecond
	r, _ := installed(t, cfg)
	ctx := context.Background()

	outcome, err := r.Execute(ctx, types.Remote("spin"), `while (true) {}`, nil, false)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, types.ErrExecution)
	assert.Contains(t, err.Error(), "timeout")

	outcome, err = r.Execute(ctx, types.Remote("after"), `globalThis.after = 1;`, nil, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, outcome)
}

func TestExecuteRetriesUntilInstalled(t *testing.T) {
	r, _ := newRealm(t, testConfig(), nil)
	ctx := context.Background()

	outcome, err := r.Execute(ctx, types.Remote("early"), `globalThis.early = true;`, nil, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeferred, outcome)

	require.NoError(t, r.Install(ctx))
	require.Eventually(t, func() bool {
		_, ok, err := r.Executed(ctx, types.Remote("early"))
		return err == nil && ok
	}, waitFor, 5*time.Millisecond)
}

func TestExecuteGivesUpAfterMaxRetries(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 3
	metrics := monitoring.NewMetrics()
	r, _ := newRealm(t, cfg, metrics)
	ctx := context.Background()

	_, err := r.Execute(ctx, types.Remote("never"), `globalThis.never = true;`, nil, false)
	require.NoError(t, err)

	abandoned := metrics.ModExecutions.WithLabelValues("remote", string(OutcomeAbandoned))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(abandoned) == 1
	}, waitFor, 5*time.Millisecond)

	_, ok, err := r.Executed(ctx, types.Remote("never"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegisterLocalModsInstallsAndAcks(t *testing.T) {
	r, ext := installed(t, testConfig())
	ctx := context.Background()

	ext.push(protocol.ActionRegisterLocalMods, protocol.LocalModsResult{
		Epoch: 7,
		Mods: []types.LocalModRecord{
			{Name: "Foo.js", DisplayName: "Foo", IsLocal: true, Enabled: true},
			{Name: "Bar.js", DisplayName: "Bar", IsLocal: true, Enabled: false},
		},
	})

	require.Eventually(t, func() bool {
		for _, msg := range ext.received() {
			if msg.Action == protocol.ActionRegistryInstalled {
				var ack protocol.RegistryInstalled
				return msg.Decode(&ack) == nil && ack.Epoch == 7
			}
		}
		return false
	}, waitFor, 5*time.Millisecond)

	mods, err := r.Registry(ctx)
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.Equal(t, "Bar.js", mods[0].Name)

	state, err := r.State(ctx, types.Local("Foo.js"))
	require.NoError(t, err)
	assert.Equal(t, types.StateEnabled, state)
	state, err = r.State(ctx, types.Local("Bar.js"))
	require.NoError(t, err)
	assert.Equal(t, types.StateDisabled, state)
}

func TestExecuteLocalModPush(t *testing.T) {
	r, ext := installed(t, testConfig())
	ctx := context.Background()

	ext.push(protocol.ActionRegisterLocalMods, protocol.LocalModsResult{Mods: []types.LocalModRecord{
		{Name: "Foo.js", Enabled: true},
		{Name: "Bar.js", Enabled: false},
	}})
	ext.push(protocol.ActionExecuteLocalMod, protocol.ExecuteLocalModRequest{Name: "Ghost.js", Source: `globalThis.ghost = true;`})
	ext.push(protocol.ActionExecuteLocalMod, protocol.ExecuteLocalModRequest{Name: "Bar.js", Source: `globalThis.bar = true;`})
	ext.push(protocol.ActionExecuteLocalMod, protocol.ExecuteLocalModRequest{Name: "Foo.js", Source: `globalThis.foo = context.config.level;`, Config: types.Config{"level": 2}})

	require.Eventually(t, func() bool {
		_, ok, err := r.Executed(ctx, types.Local("Foo.js"))
		return err == nil && ok
	}, waitFor, 5*time.Millisecond)

	assert.EqualValues(t, 2, eval(t, r, "globalThis.foo"))
	assert.Equal(t, "undefined", eval(t, r, "typeof globalThis.ghost"))
	assert.Equal(t, "undefined", eval(t, r, "typeof globalThis.bar"))

	// A forced run executes a disabled mod.
	ext.push(protocol.ActionExecuteLocalMod, protocol.ExecuteLocalModRequest{Name: "Bar.js", Force: true, Source: `globalThis.bar = true;`})
	require.Eventually(t, func() bool {
		v, err := r.Eval(ctx, "globalThis.bar === true")
		return err == nil && v == true
	}, waitFor, 5*time.Millisecond)
}

func TestLoadScriptsRunsEnabledInOrder(t *testing.T) {
	r, ext := installed(t, testConfig())
	ctx := context.Background()

	sources := map[string]string{
		"a": `globalThis.order = (globalThis.order || []).concat("a");`,
		"b": `globalThis.order = (globalThis.order || []).concat("b");`,
		"c": `globalThis.order = (globalThis.order || []).concat("c");`,
	}
	ext.handle(protocol.ActionGetScript, func(msg protocol.Message) *protocol.Response {
		var req protocol.GetScriptRequest
		require.NoError(t, msg.Decode(&req))
		if req.Hash == "missing" {
			return protocol.Fail(errors.New("could not load script"))
		}
		return protocol.OK(protocol.GetScriptResult{ScriptContent: sources[req.Hash]})
	})

	ext.push(protocol.ActionLoadScripts, protocol.LoadScriptsRequest{Scripts: []types.ScriptRecord{
		{Hash: "a", Enabled: true},
		{Hash: "missing", Enabled: true},
		{Hash: "b", Enabled: false},
		{Hash: "c", Enabled: true},
	}})

	require.Eventually(t, func() bool {
		_, ok, err := r.Executed(ctx, types.Remote("c"))
		return err == nil && ok
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, []interface{}{"a", "c"}, eval(t, r, "globalThis.order"))

	state, err := r.State(ctx, types.Remote("b"))
	require.NoError(t, err)
	assert.Equal(t, types.StateDisabled, state)
}

func TestButtonsAreIdempotentByID(t *testing.T) {
	r, _ := installed(t, testConfig())
	ctx := context.Background()

	_, err := r.Execute(ctx, types.Remote("btn"), `
		context.api.registerButton({ id: "go", label: "Go", onClick: function() { globalThis.clicks = (globalThis.clicks || 0) + 1; } });
		context.api.registerButton({ id: "go", label: "Go again", onClick: function() { globalThis.clicks = (globalThis.clicks || 0) + 10; } });
	`, nil, false)
	require.NoError(t, err)

	assert.EqualValues(t, 1, eval(t, r, `modloader.query("#modloader-buttons button").length`))
	assert.Equal(t, "Go again", eval(t, r, `modloader.query("#modloader-buttons button")[0].textContent`))

	require.NoError(t, r.Click(ctx, "go"))
	assert.EqualValues(t, 10, eval(t, r, "globalThis.clicks"))
	assert.ErrorIs(t, r.Click(ctx, "nope"), types.ErrNotFound)

	assert.Equal(t, true, eval(t, r, `modloader.removeButton("go")`))
	assert.Equal(t, false, eval(t, r, `modloader.removeButton("go")`))
	assert.EqualValues(t, 0, eval(t, r, `modloader.query("#modloader-buttons button").length`))
}

func TestRegisterButtonRequiresID(t *testing.T) {
	r, _ := installed(t, testConfig())
	_, err := r.Execute(context.Background(), types.Remote("x"), `context.api.registerButton({ label: "x" });`, nil, false)
	assert.ErrorIs(t, err, types.ErrExecution)
	assert.Contains(t, err.Error(), "id is required")
}

func TestModalIsSanitised(t *testing.T) {
	r, _ := installed(t, testConfig())
	ctx := context.Background()

	eval(t, r, `modloader.showModal("Title <i>", "<b>hi</b><script>alert(1)</script>")`)
	html, err := r.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "<b>hi</b>")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "Title &lt;i&gt;")

	assert.Equal(t, true, eval(t, r, `modloader.closeModal()`))
	assert.Equal(t, false, eval(t, r, `modloader.closeModal()`))
}

func TestConfigPanelRendersFields(t *testing.T) {
	r, _ := installed(t, testConfig())

	eval(t, r, `modloader.createConfigPanel({
		id: "opts", title: "Options",
		fields: [
			{ key: "threshold", label: "Threshold", type: "number", default: 3 },
			{ key: "enabled", type: "checkbox", default: true },
		],
	})`)
	eval(t, r, `modloader.createConfigPanel({ id: "opts", title: "Options v2", fields: [] })`)

	assert.EqualValues(t, 1, eval(t, r, `modloader.query("#modloader-config-panel form").length`))
	assert.Equal(t, "Options v2", eval(t, r, `modloader.query("#modloader-config-panel h3")[0].textContent`))

	eval(t, r, `modloader.createConfigPanel({
		id: "other", fields: [{ key: "threshold", type: "number", default: 3 }],
	})`)
	assert.Equal(t, "3", eval(t, r, `modloader.query("input[name=threshold]")[0].getAttribute("value")`))
}

func TestHookAndUnhook(t *testing.T) {
	r, _ := installed(t, testConfig())

	eval(t, r, `
		globalThis.game.combat = { damage: function(x) { return x * 2; } };
		globalThis.unhook = modloader.hook(game.combat, "damage", function(orig, x) { return orig(x) + 1; });
	`)
	assert.EqualValues(t, 11, eval(t, r, `game.combat.damage(5)`))
	assert.Equal(t, true, eval(t, r, `unhook()`))
	assert.EqualValues(t, 10, eval(t, r, `game.combat.damage(5)`))
	assert.Equal(t, false, eval(t, r, `unhook()`))

	_, err := r.Eval(context.Background(), `modloader.hook(game.combat, "missing", function() {})`)
	assert.Error(t, err)
}

func TestGamePathUtilities(t *testing.T) {
	r, _ := installed(t, testConfig())

	eval(t, r, `game.player = { stats: { hp: 10 } };`)
	assert.EqualValues(t, 10, eval(t, r, `modloader.game.get("player.stats.hp")`))
	assert.Nil(t, eval(t, r, `modloader.game.get("player.inventory.sword")`))

	assert.Equal(t, true, eval(t, r, `modloader.game.set("player.stats.hp", 99)`))
	assert.EqualValues(t, 99, eval(t, r, `game.player.stats.hp`))
	assert.Equal(t, false, eval(t, r, `modloader.game.set("nothing.here.x", 1)`))
}

func TestQueryAndXPath(t *testing.T) {
	w := relay.NewWindow(nil, nil)
	t.Cleanup(w.Close)
	r, err := New(testConfig(), w, `<html><body><div id="hud"><span class="gold">42</span></div></body></html>`, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	require.NoError(t, r.Install(context.Background()))

	assert.Equal(t, "42", eval(t, r, `modloader.query("#hud .gold")[0].textContent`))
	assert.Equal(t, "SPAN", eval(t, r, `modloader.xpath("//span[@class='gold']")[0].tagName`))

	eval(t, r, `modloader.query("#hud .gold")[0].setText("43")`)
	assert.Equal(t, "43", eval(t, r, `modloader.xpath("//div[@id='hud']/span")[0].textContent`))

	_, err = r.Eval(context.Background(), `modloader.xpath("//[")`)
	assert.Error(t, err)
}

func TestTranslateFallsBackToKey(t *testing.T) {
	w := relay.NewWindow(nil, nil)
	t.Cleanup(w.Close)
	ext := newExtension(t, w)
	ext.handle(protocol.ActionGetLocale, func(protocol.Message) *protocol.Response {
		return protocol.OK(protocol.LocaleResult{Locale: "fr", Messages: map[string]string{"hello": "Bonjour"}})
	})
	r, err := New(testConfig(), w, "", nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	ctx := context.Background()
	require.NoError(t, r.Install(ctx))

	require.Eventually(t, func() bool {
		locale, err := r.Locale(ctx)
		return err == nil && locale == "fr"
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, "Bonjour", eval(t, r, `modloader.t("hello")`))
	assert.Equal(t, "missing.key", eval(t, r, `modloader.t("missing.key")`))
	assert.Equal(t, "fr", eval(t, r, `modloader.locale()`))

	ext.push(protocol.ActionLocaleChanged, protocol.LocaleResult{Locale: "de", Messages: map[string]string{"hello": "Hallo"}})
	require.Eventually(t, func() bool {
		v, err := r.Eval(ctx, `modloader.t("hello")`)
		return err == nil && v == "Hallo"
	}, waitFor, 5*time.Millisecond)
}

func TestConfigPromisesRoundTrip(t *testing.T) {
	r, ext := installed(t, testConfig())
	ctx := context.Background()

	var (
		mu      sync.Mutex
		updates []protocol.UpdateScriptConfigRequest
	)
	ext.handle(protocol.ActionGetModConfig, func(msg protocol.Message) *protocol.Response {
		var req protocol.GetModConfigRequest
		require.NoError(t, msg.Decode(&req))
		if req.Mod != types.Local("Foo.js") {
			return protocol.Fail(types.ErrNotFound)
		}
		return protocol.OK(protocol.ConfigResult{Config: types.Config{"a": 1}})
	})
	ext.handle(protocol.ActionUpdateScriptConfig, func(msg protocol.Message) *protocol.Response {
		var req protocol.UpdateScriptConfigRequest
		require.NoError(t, msg.Decode(&req))
		mu.Lock()
		updates = append(updates, req)
		mu.Unlock()
		return protocol.OK(protocol.ConfigResult{Config: types.Config{"a": 1, "b": 2}})
	})

	_, err := r.Execute(ctx, types.Local("Foo.js"), `
		context.api.getConfig(context.id).then(function(c) { globalThis.got = c.a; });
		context.api.setConfig({ kind: "local", key: "Foo.js" }, { b: 2 }).then(function(c) { globalThis.merged = c.b; });
		context.api.getConfig("remote:nope").catch(function(e) { globalThis.failed = String(e); });
	`, nil, false)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, err := r.Eval(ctx, `globalThis.got === 1 && globalThis.merged === 2 && typeof globalThis.failed === "string"`)
		return err == nil && v == true
	}, waitFor, 5*time.Millisecond)
	assert.Contains(t, eval(t, r, "globalThis.failed"), "not found")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 1)
	require.NotNil(t, updates[0].Mod)
	assert.Equal(t, types.Local("Foo.js"), *updates[0].Mod)
	assert.Equal(t, types.Config{"b": float64(2)}, updates[0].Config)
}

func TestUnansweredRequestTimesOut(t *testing.T) {
	cfg := testConfig()
	cfg.RequestTimeout = 50 * time.Millisecond
	r, _ := installed(t, cfg)
	ctx := context.Background()

	eval(t, r, `modloader.getConfig("local:Foo.js").catch(function(e) { globalThis.err = String(e); });`)

	require.Eventually(t, func() bool {
		v, err := r.Eval(ctx, `typeof globalThis.err === "string"`)
		return err == nil && v == true
	}, waitFor, 5*time.Millisecond)
	assert.Contains(t, eval(t, r, "globalThis.err"), "timed out")
	assert.Zero(t, r.Pending())
}

func TestConsoleIsAttributedToMod(t *testing.T) {
	r, _ := installed(t, testConfig())
	ctx := context.Background()

	_, err := r.Execute(ctx, types.Remote("talk"), `console.warn("hi", 1);`, nil, false)
	require.NoError(t, err)
	eval(t, r, `console.log("page")`)

	entries, err := r.Console(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "remote:talk", entries[0].Mod)
	assert.Equal(t, "warn", entries[0].Level)
	assert.Equal(t, "hi 1", entries[0].Message)
	assert.Equal(t, "page", entries[1].Mod)
}

func TestHostGlobalsAreRemoved(t *testing.T) {
	r, _ := installed(t, testConfig())
	for _, name := range []string{"require", "process", "module"} {
		assert.Equal(t, "undefined", eval(t, r, "typeof "+name), name)
	}
}

func TestClosedRealmRejectsWork(t *testing.T) {
	r, _ := installed(t, testConfig())
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err := r.Eval(context.Background(), "1")
	assert.ErrorIs(t, err, ErrStopped)
}

func TestUnhookOutOfOrder(t *testing.T) {
	r, _ := installed(t, testConfig())

	eval(t, r, `
		globalThis.target = { f: function(x) { return x; } };
		globalThis.u1 = modloader.hook(target, "f", function(orig, x) { return "h1(" + orig(x) + ")"; });
		globalThis.u2 = modloader.hook(target, "f", function(orig, x) { return "h2(" + orig(x) + ")"; });
	`)
	assert.Equal(t, "h2(h1(x))", eval(t, r, `target.f("x")`))

	assert.Equal(t, true, eval(t, r, `u1()`))
	assert.Equal(t, "h2(x)", eval(t, r, `target.f("x")`))
	assert.Equal(t, false, eval(t, r, `u1()`))

	assert.Equal(t, true, eval(t, r, `u2()`))
	assert.Equal(t, "x", eval(t, r, `target.f("x")`))
}

func TestUnhookRestoresOriginalFunction(t *testing.T) {
	r, _ := installed(t, testConfig())

	eval(t, r, `
		globalThis.orig = function(x) { return x; };
		globalThis.target = { f: orig };
		globalThis.u1 = modloader.hook(target, "f", function(o, x) { return o(x) + 1; });
		globalThis.u2 = modloader.hook(target, "f", function(o, x) { return o(x) * 10; });
		u1();
		u2();
	`)
	assert.Equal(t, true, eval(t, r, `target.f === orig`))
}

func TestModConfigWorksFromTimers(t *testing.T) {
	r, ext := installed(t, testConfig())
	ctx := context.Background()

	var (
		mu   sync.Mutex
		seen []types.ModIdentifier
	)
	ext.handle(protocol.ActionGetModConfig, func(msg protocol.Message) *protocol.Response {
		var req protocol.GetModConfigRequest
		require.NoError(t, msg.Decode(&req))
		mu.Lock()
		seen = append(seen, req.Mod)
		mu.Unlock()
		return protocol.OK(protocol.ConfigResult{Config: types.Config{"speed": 3}})
	})
	ext.handle(protocol.ActionUpdateScriptConfig, func(msg protocol.Message) *protocol.Response {
		var req protocol.UpdateScriptConfigRequest
		require.NoError(t, msg.Decode(&req))
		mu.Lock()
		seen = append(seen, *req.Mod)
		mu.Unlock()
		return protocol.OK(protocol.ConfigResult{Config: req.Config})
	})

	_, err := r.Execute(ctx, types.Local("Speed.js"), `
		setTimeout(function() {
			context.api.getConfig().then(function(c) { globalThis.speed = c.speed; });
			context.api.setConfig({ turbo: true }).then(function(c) { globalThis.turbo = c.turbo; });
		}, 0);
	`, nil, false)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, err := r.Eval(ctx, `globalThis.speed === 3 && globalThis.turbo === true`)
		return err == nil && v == true
	}, waitFor, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []types.ModIdentifier{types.Local("Speed.js"), types.Local("Speed.js")}, seen)
}
