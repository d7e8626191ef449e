package realm

import (
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

var errExecTimeout = errors.New("execution timeout exceeded")

// execute runs one attempt of job on the loop.
func (r *Realm) execute(vm *goja.Runtime, job execJob) (Outcome, error) {
	key := job.id.String()
	kind := string(job.id.Kind)

	if r.executed[key] != nil && !job.force {
		r.log.Debug("mod already executed", zap.String("mod", key))
		return OutcomeSkipped, nil
	}
	if r.disabled[key] && !job.force {
		r.log.Debug("mod disabled", zap.String("mod", key))
		return OutcomeSkipped, nil
	}

	if r.api == nil {
		if job.attempt >= r.cfg.MaxRetries {
			r.log.Warn("capability object never installed, giving up",
				zap.String("mod", key), zap.Int("attempts", job.attempt))
			r.metrics.RecordExecution(kind, string(OutcomeAbandoned))
			return OutcomeAbandoned, fmt.Errorf("%w: %s: capability object not installed", types.ErrExecution, key)
		}
		job.attempt++
		r.loop.SetTimeout(func(vm *goja.Runtime) {
			_, _ = r.execute(vm, job)
		}, r.cfg.RetryInterval)
		return OutcomeDeferred, nil
	}

	start := time.Now()
	exports, context, err := r.run(vm, job)
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", types.ErrExecution, key, err)
		r.log.Error("mod failed", zap.String("mod", key), zap.Error(err))
		r.metrics.RecordExecution(kind, string(OutcomeFailed))
		return OutcomeFailed, err
	}

	m := r.executed[key]
	if m == nil {
		m = &executedMod{id: job.id}
		r.executed[key] = m
	}
	m.context = context
	m.exports = exports
	m.runs++
	m.lastRun = time.Now()

	r.log.Info("mod executed", zap.String("mod", key), zap.Int("runs", m.runs), zap.Duration("took", time.Since(start)))
	r.metrics.RecordExecution(kind, string(OutcomeExecuted))
	return OutcomeExecuted, nil
}

// run compiles the source as a module factory and calls it under the
// execution timeout.
func (r *Realm) run(vm *goja.Runtime, job execJob) (exports goja.Value, context *goja.Object, err error) {
	if job.source == "" {
		return nil, nil, errors.New("empty source")
	}

	prg, err := goja.Compile(job.id.String(), "(function(context){\n"+job.source+"\n})", false)
	if err != nil {
		return nil, nil, err
	}

	context = r.newContext(vm, job)

	prev := r.current
	r.current = job.id.String()
	defer func() { r.current = prev }()

	fired := make(chan struct{})
	timer := time.AfterFunc(r.cfg.ExecTimeout, func() {
		vm.Interrupt(errExecTimeout)
		close(fired)
	})
	defer func() {
		if !timer.Stop() {
			<-fired
		}
		vm.ClearInterrupt()
	}()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	val, err := vm.RunProgram(prg)
	if err != nil {
		return nil, nil, err
	}
	factory, ok := goja.AssertFunction(val)
	if !ok {
		return nil, nil, errors.New("source did not compile to a module factory")
	}
	ret, err := factory(goja.Undefined(), context)
	if err != nil {
		return nil, nil, err
	}

	exports = context.Get("exports")
	if ret != nil && !goja.IsUndefined(ret) && !goja.IsNull(ret) {
		exports = ret
		_ = context.Set("exports", ret)
	}
	return exports, context, nil
}

func (r *Realm) newContext(vm *goja.Runtime, job execJob) *goja.Object {
	ctx := vm.NewObject()
	_ = ctx.Set("id", job.id.String())
	if job.id.IsLocal() {
		_ = ctx.Set("name", job.id.Key)
	} else {
		_ = ctx.Set("hash", job.id.Key)
	}
	_ = ctx.Set("config", map[string]interface{}(job.config.Clone()))
	_ = ctx.Set("api", r.modAPI(vm, job.id.String()))
	_ = ctx.Set("exports", vm.NewObject())
	return ctx
}
