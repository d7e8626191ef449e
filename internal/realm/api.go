package realm

import (
	"fmt"
	"strings"

	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
)

// newAPI builds the capability object handed to every mod.
func (r *Realm) newAPI(vm *goja.Runtime) *goja.Object {
	api := vm.NewObject()
	set := func(name string, fn func(goja.FunctionCall) goja.Value) {
		_ = api.Set(name, fn)
	}

	set("showModal", func(call goja.FunctionCall) goja.Value {
		r.dom.showModal(argString(call, 0), argString(call, 1))
		return goja.Undefined()
	})
	set("closeModal", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(r.dom.closeModal())
	})

	set("registerButton", func(call goja.FunctionCall) goja.Value {
		spec := argObject(vm, call, 0, "registerButton")
		id := stringProp(spec, "id")
		if id == "" {
			panic(vm.NewTypeError("registerButton: id is required"))
		}
		label := stringProp(spec, "label")
		if label == "" {
			label = id
		}
		onClick, _ := goja.AssertFunction(spec.Get("onClick"))
		r.buttons[id] = &button{label: label, onClick: onClick, owner: r.current}
		r.dom.setButton(id, label)
		return goja.Undefined()
	})
	set("removeButton", func(call goja.FunctionCall) goja.Value {
		id := argString(call, 0)
		delete(r.buttons, id)
		return vm.ToValue(r.dom.removeButton(id))
	})

	set("createConfigPanel", func(call goja.FunctionCall) goja.Value {
		spec := argObject(vm, call, 0, "createConfigPanel")
		id := stringProp(spec, "id")
		if id == "" {
			panic(vm.NewTypeError("createConfigPanel: id is required"))
		}
		title := stringProp(spec, "title")
		if title == "" {
			title = id
		}
		r.dom.renderPanel(id, title, panelFields(vm, spec.Get("fields")))
		return goja.Undefined()
	})

	// Unbound calls fall back to whichever mod is running synchronously.
	set("getConfig", func(call goja.FunctionCall) goja.Value {
		return r.getConfig(vm, call, r.current)
	})
	set("setConfig", func(call goja.FunctionCall) goja.Value {
		return r.setConfig(vm, call, r.current, false)
	})
	set("sendMessage", func(call goja.FunctionCall) goja.Value {
		action := argString(call, 0)
		if action == "" {
			panic(vm.NewTypeError("sendMessage: action is required"))
		}
		return r.promise(vm, protocol.OriginClient, protocol.Action(action), exportValue(call.Argument(1)),
			func(resp *protocol.Response) (interface{}, error) {
				var out interface{}
				err := resp.Decode(&out)
				return out, err
			})
	})

	set("hook", func(call goja.FunctionCall) goja.Value {
		return r.hook(vm, call)
	})

	set("t", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(r.translate(argString(call, 0)))
	})
	set("locale", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(r.locale)
	})

	set("query", func(call goja.FunctionCall) goja.Value {
		return r.elements(vm, r.dom.Query(argString(call, 0)))
	})
	set("xpath", func(call goja.FunctionCall) goja.Value {
		sel, err := r.dom.XPath(argString(call, 0))
		if err != nil {
			panic(vm.NewTypeError(err.Error()))
		}
		return r.elements(vm, sel)
	})

	_ = api.Set("game", r.gameUtils(vm))
	return api
}

// modAPI derives the capability object for one mod. Its config functions
// default to that mod, so they keep working from timers and callbacks.
func (r *Realm) modAPI(vm *goja.Runtime, mod string) *goja.Object {
	api := vm.NewObject()
	_ = api.SetPrototype(r.api)
	_ = api.Set("getConfig", func(call goja.FunctionCall) goja.Value {
		return r.getConfig(vm, call, mod)
	})
	_ = api.Set("setConfig", func(call goja.FunctionCall) goja.Value {
		return r.setConfig(vm, call, mod, true)
	})
	return api
}

func (r *Realm) getConfig(vm *goja.Runtime, call goja.FunctionCall, fallback string) goja.Value {
	mod := r.modArg(vm, call.Argument(0), fallback, "getConfig")
	return r.promise(vm, protocol.OriginSandboxUtils, protocol.ActionGetModConfig,
		protocol.GetModConfigRequest{Mod: mod}, decodeConfig)
}

// setConfig takes (mod, partial). A bound API also accepts (partial).
func (r *Realm) setConfig(vm *goja.Runtime, call goja.FunctionCall, fallback string, bound bool) goja.Value {
	modVal, partialVal := call.Argument(0), call.Argument(1)
	if bound && len(call.Arguments) == 1 {
		modVal, partialVal = goja.Undefined(), call.Argument(0)
	}
	mod := r.modArg(vm, modVal, fallback, "setConfig")
	partial, ok := exportValue(partialVal).(map[string]interface{})
	if !ok {
		panic(vm.NewTypeError("setConfig: config must be an object"))
	}
	return r.promise(vm, protocol.OriginSandboxUtils, protocol.ActionUpdateScriptConfig,
		protocol.UpdateScriptConfigRequest{Mod: &mod, Config: types.Config(partial)}, decodeConfig)
}

// promise sends a page request and settles the returned Promise on the loop.
func (r *Realm) promise(vm *goja.Runtime, from protocol.Origin, action protocol.Action, data interface{},
	decode func(*protocol.Response) (interface{}, error)) goja.Value {

	promise, resolve, reject := vm.NewPromise()
	msg, err := protocol.NewMessage(action, data)
	if err != nil {
		reject(vm.NewGoError(err))
		return vm.ToValue(promise)
	}

	cid, err := r.caller.Call(from, msg, func(resp *protocol.Response, err error) {
		r.loop.RunOnLoop(func(vm *goja.Runtime) {
			if err == nil {
				err = resp.Err()
			}
			if err != nil {
				reject(vm.NewGoError(err))
				return
			}
			out, err := decode(resp)
			if err != nil {
				reject(vm.NewGoError(err))
				return
			}
			resolve(vm.ToValue(out))
		})
	})
	// A failed post has already settled through the callback.
	if err != nil && cid == "" {
		reject(vm.NewGoError(err))
	}
	return vm.ToValue(promise)
}

func decodeConfig(resp *protocol.Response) (interface{}, error) {
	var res protocol.ConfigResult
	if err := resp.Decode(&res); err != nil {
		return nil, err
	}
	if res.Config == nil {
		return map[string]interface{}{}, nil
	}
	return map[string]interface{}(res.Config), nil
}

// hook replaces target[method] with a function calling
// wrapper(original, ...args) and returns a function removing it. Removing a
// hook that others were stacked on turns it into a pass-through; the method
// is restored once the top of the stack is removed.
func (r *Realm) hook(vm *goja.Runtime, call goja.FunctionCall) goja.Value {
	target := argObject(vm, call, 0, "hook")
	method := argString(call, 1)
	wrapper, ok := goja.AssertFunction(call.Argument(2))
	if !ok {
		panic(vm.NewTypeError("hook: wrapper must be a function"))
	}
	original := target.Get(method)
	next, ok := goja.AssertFunction(original)
	if !ok {
		panic(vm.NewTypeError(fmt.Sprintf("hook: %s is not a function", method)))
	}

	h := &hookLink{original: original}
	h.installed = vm.ToValue(func(inner goja.FunctionCall) goja.Value {
		var (
			v   goja.Value
			err error
		)
		if h.removed {
			v, err = next(inner.This, inner.Arguments...)
		} else {
			args := append([]goja.Value{original}, inner.Arguments...)
			v, err = wrapper(inner.This, args...)
		}
		if err != nil {
			panic(err)
		}
		return v
	})
	if err := target.Set(method, h.installed); err != nil {
		panic(vm.NewGoError(err))
	}
	r.hooks[target] = append(r.hooks[target], h)

	return vm.ToValue(func(goja.FunctionCall) goja.Value {
		if h.removed {
			return vm.ToValue(false)
		}
		h.removed = true
		r.unwind(target, method)
		return vm.ToValue(true)
	})
}

// hookLink is one installed hook. Links of a target are kept in install
// order.
type hookLink struct {
	original  goja.Value
	installed goja.Value
	removed   bool
}

// unwind restores target[method] past every removed hook on top of it.
func (r *Realm) unwind(target *goja.Object, method string) {
	links := r.hooks[target]
	for {
		cur := target.Get(method)
		i := len(links) - 1
		for ; i >= 0; i-- {
			if cur != nil && links[i].installed.SameAs(cur) {
				break
			}
		}
		if i < 0 || !links[i].removed {
			break
		}
		_ = target.Set(method, links[i].original)
		links = append(links[:i], links[i+1:]...)
	}
	if len(links) == 0 {
		delete(r.hooks, target)
		return
	}
	r.hooks[target] = links
}

func (r *Realm) gameUtils(vm *goja.Runtime) *goja.Object {
	game := vm.NewObject()
	_ = game.Set("get", func(call goja.FunctionCall) goja.Value {
		v := lookupPath(vm, vm.Get("game"), argString(call, 0))
		if v == nil {
			return goja.Undefined()
		}
		return v
	})
	_ = game.Set("set", func(call goja.FunctionCall) goja.Value {
		path := argString(call, 0)
		if path == "" {
			return vm.ToValue(false)
		}
		parentPath, last := "", path
		if i := strings.LastIndexByte(path, '.'); i >= 0 {
			parentPath, last = path[:i], path[i+1:]
		}
		parent := lookupPath(vm, vm.Get("game"), parentPath)
		if isNullish(parent) {
			return vm.ToValue(false)
		}
		if err := parent.ToObject(vm).Set(last, call.Argument(1)); err != nil {
			return vm.ToValue(false)
		}
		return vm.ToValue(true)
	})
	return game
}

func lookupPath(vm *goja.Runtime, root goja.Value, path string) goja.Value {
	v := root
	if path == "" {
		return v
	}
	for _, seg := range strings.Split(path, ".") {
		if isNullish(v) {
			return nil
		}
		v = v.ToObject(vm).Get(seg)
	}
	return v
}

// elements wraps a selection as an array of element proxies.
func (r *Realm) elements(vm *goja.Runtime, sel *goquery.Selection) goja.Value {
	items := make([]interface{}, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		items = append(items, r.createElementProxy(vm, s))
	})
	return vm.NewArray(items...)
}

// createElementProxy creates a proxy for DOM element
func (r *Realm) createElementProxy(vm *goja.Runtime, sel *goquery.Selection) *goja.Object {
	elem := vm.NewObject()
	_ = elem.Set("tagName", strings.ToUpper(goquery.NodeName(sel)))
	_ = elem.Set("id", sel.AttrOr("id", ""))
	_ = elem.Set("className", sel.AttrOr("class", ""))
	_ = elem.Set("textContent", sel.Text())
	_ = elem.Set("getAttribute", func(name string) goja.Value {
		if v, ok := sel.Attr(name); ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	_ = elem.Set("setAttribute", func(name, value string) {
		sel.SetAttr(name, value)
	})
	_ = elem.Set("setText", func(text string) {
		sel.SetText(text)
	})
	_ = elem.Set("html", func() string {
		html, _ := sel.Html()
		return html
	})
	_ = elem.Set("remove", func() {
		sel.Remove()
	})
	_ = elem.Set("click", func() {
		if id, ok := sel.Attr("data-button-id"); ok {
			if err := r.click(id); err != nil {
				panic(vm.NewGoError(err))
			}
		}
	})
	return elem
}

func (r *Realm) modArg(vm *goja.Runtime, v goja.Value, fallback, fn string) types.ModIdentifier {
	if isNullish(v) && fallback != "" {
		v = vm.ToValue(fallback)
	}
	var (
		mod types.ModIdentifier
		err error
	)
	switch x := exportValue(v).(type) {
	case string:
		mod, err = types.ParseModIdentifier(x)
	case map[string]interface{}:
		kind, _ := x["kind"].(string)
		key, _ := x["key"].(string)
		mod = types.ModIdentifier{Kind: types.ModKind(kind), Key: key}
		err = mod.Validate()
	default:
		err = fmt.Errorf("mod id required: %w", types.ErrInvalid)
	}
	if err != nil {
		panic(vm.NewTypeError(fmt.Sprintf("%s: %v", fn, err)))
	}
	return mod
}

func panelFields(vm *goja.Runtime, v goja.Value) []PanelField {
	if isNullish(v) {
		return nil
	}
	arr := v.ToObject(vm)
	n := int(arr.Get("length").ToInteger())
	fields := make([]PanelField, 0, n)
	for i := 0; i < n; i++ {
		item := arr.Get(fmt.Sprint(i))
		if isNullish(item) {
			continue
		}
		obj := item.ToObject(vm)
		key := stringProp(obj, "key")
		if key == "" {
			continue
		}
		label := stringProp(obj, "label")
		if label == "" {
			label = key
		}
		fields = append(fields, PanelField{
			Key:   key,
			Label: label,
			Type:  stringProp(obj, "type"),
			Value: exportValue(obj.Get("default")),
		})
	}
	return fields
}

func argString(call goja.FunctionCall, i int) string {
	v := call.Argument(i)
	if isNullish(v) {
		return ""
	}
	return v.String()
}

func argObject(vm *goja.Runtime, call goja.FunctionCall, i int, fn string) *goja.Object {
	v := call.Argument(i)
	if isNullish(v) {
		panic(vm.NewTypeError(fn + ": object argument required"))
	}
	return v.ToObject(vm)
}

func stringProp(obj *goja.Object, name string) string {
	v := obj.Get(name)
	if isNullish(v) {
		return ""
	}
	return v.String()
}

func isNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}
