package realm

import (
	"strings"
	"time"

	"github.com/GriffinCanCode/modbridge/internal/infrastructure/logging"
	"github.com/dop251/goja"
)

// setupGlobals strips host globals and routes console output to the logger.
func (r *Realm) setupGlobals(vm *goja.Runtime) error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
			return err
		}
	}
	if err := vm.Set("console", console); err != nil {
		return err
	}

	// Pages usually expose their state on a game global; start with an empty one.
	if v := vm.Get("game"); v == nil || goja.IsUndefined(v) {
		return vm.Set("game", vm.NewObject())
	}
	return nil
}

// makeConsoleFunc creates a console function
func (r *Realm) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		mod := r.current
		if mod == "" {
			mod = "page"
		}
		r.appendConsole(LogEntry{Mod: mod, Level: level, Message: msg, Time: time.Now()})

		logging.Console(r.log, mod, level, msg)
		return goja.Undefined()
	}
}
