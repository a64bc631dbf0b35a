package invoker

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/vk/jobhost/internal/binding"
	"github.com/vk/jobhost/internal/converter"
	"github.com/vk/jobhost/internal/ctxlog"
	"github.com/vk/jobhost/internal/indexer"
)

// Recorder persists finished invocations.
type Recorder interface {
	Record(ctx context.Context, res *Result) error
}

// Invoker runs invocations. It is safe for concurrent use.
type Invoker struct {
	conv           *converter.Registry
	recorder       Recorder
	defaultTimeout time.Duration
	now            func() time.Time
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithRecorder stores every Result through r.
func WithRecorder(r Recorder) Option {
	return func(iv *Invoker) { iv.recorder = r }
}

// WithDefaultTimeout bounds invocations of functions that declare no timeout
// of their own. Zero means no bound.
func WithDefaultTimeout(d time.Duration) Option {
	return func(iv *Invoker) { iv.defaultTimeout = d }
}

// New creates an Invoker that converts explicit arguments and binding data
// through conv.
func New(conv *converter.Registry, opts ...Option) *Invoker {
	iv := &Invoker{conv: conv, now: time.Now}
	for _, opt := range opts {
		opt(iv)
	}
	return iv
}

type bound struct {
	param *indexer.Parameter
	value *binding.Value
}

// Invoke runs def once. args are explicit caller arguments: they override
// binding data and feed invoke-only parameters. trigger is the trigger
// payload; when nil, an argument named after the trigger parameter is used
// instead.
func (iv *Invoker) Invoke(ctx context.Context, def *indexer.FunctionDefinition, args map[string]any, trigger any) *Result {
	res := &Result{
		ID:            uuid.Must(uuid.NewV7()).String(),
		Function:      def.Name,
		ParameterLogs: map[string]string{},
		Started:       iv.now(),
	}
	res.enter(StateCreated)

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = iv.defaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger := ctxlog.FromContext(ctx).With("function", def.Name, "invocation_id", res.ID)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("▶️ Starting invocation")

	var cleanups cleanupStack
	values, fault := iv.bind(ctx, def, args, trigger, res, &cleanups)

	if fault != nil {
		res.Fault = fault
		res.enter(StateFaulted)
		res.enter(StateFlushed)
	} else {
		res.enter(StateBound)
		res.enter(StateInvoking)
		if err := call(def, values); err != nil {
			res.Fault = &Fault{Stage: StageInvoke, Err: err}
			res.enter(StateFaulted)
		} else {
			res.enter(StateCompleted)
		}
		iv.flush(ctx, values, res)
		res.enter(StateFlushed)
	}

	res.CleanupErr = cleanups.run(ctx)
	res.Finished = iv.now()
	res.enter(StateDone)

	if res.Fault != nil {
		logger.Error("❌ Invocation faulted", "stage", res.Fault.Stage, "param", res.Fault.Parameter, "error", res.Fault.Err, "duration", res.Duration())
	} else {
		logger.Info("✅ Finished invocation", "duration", res.Duration())
	}

	if iv.recorder != nil {
		if err := iv.recorder.Record(ctx, res); err != nil {
			logger.Warn("Failed to record invocation.", "error", err)
		}
	}
	return res
}

// bind produces one value per parameter in declaration order. On failure the
// values bound so far stay on the cleanup stack.
func (iv *Invoker) bind(ctx context.Context, def *indexer.FunctionDefinition, args map[string]any, trigger any, res *Result, cleanups *cleanupStack) ([]bound, *Fault) {
	logger := ctxlog.FromContext(ctx)

	var td *binding.TriggerData
	if tp := def.Trigger(); tp != nil {
		if trigger == nil {
			trigger = args[tp.Name]
		}
		if trigger == nil {
			return nil, &Fault{Stage: StageBind, Parameter: tp.Name, Err: errors.New("no trigger payload")}
		}
		var err error
		td, err = safeBind(func() (*binding.TriggerData, error) {
			return tp.Spec.Trigger.Bind(ctx, trigger)
		})
		if err == nil && td == nil {
			err = errors.New("trigger produced no binding data")
		}
		if err != nil {
			return nil, &Fault{Stage: StageBind, Parameter: tp.Name, Err: err}
		}
		if td.Value != nil {
			cleanups.push(tp.Name, td.Value.Cleanup)
		}
	}

	res.Data = buildData(td, args, def.Trigger())

	values := make([]bound, len(def.Params))
	for i := range def.Params {
		p := &def.Params[i]
		bc := &binding.Context{
			FunctionName: def.Name,
			InvocationID: res.ID,
			Parameter:    p.Name,
			Data:         res.Data,
			Logger:       logger.With("param", p.Name),
		}

		val, err := safeBind(func() (*binding.Value, error) {
			return iv.bindParam(ctx, p, bc, td, args)
		})
		if err == nil && val == nil {
			err = errors.New("binding produced no value")
		}
		if err != nil {
			return nil, &Fault{Stage: StageBind, Parameter: p.Name, Err: err}
		}
		if p.Kind != indexer.KindTrigger {
			cleanups.push(p.Name, val.Cleanup)
		}

		if !val.Arg.IsValid() {
			val.Arg = reflect.Zero(p.Type)
		}
		if !val.Arg.Type().AssignableTo(p.Type) {
			return nil, &Fault{Stage: StageBind, Parameter: p.Name, Err: fmt.Errorf("bound value of type %s is not assignable to %s", val.Arg.Type(), p.Type)}
		}
		values[i] = bound{param: p, value: val}
		logger.Debug("Bound parameter.", "param", p.Name, "kind", p.Kind.String())
	}
	return values, nil
}

func (iv *Invoker) bindParam(ctx context.Context, p *indexer.Parameter, bc *binding.Context, td *binding.TriggerData, args map[string]any) (*binding.Value, error) {
	switch p.Kind {
	case indexer.KindTrigger:
		if td.Value == nil {
			return nil, errors.New("trigger produced no value")
		}
		return td.Value, nil

	case indexer.KindBound:
		return p.Spec.Factory(ctx, bc)

	case indexer.KindAmbient:
		switch p.Type {
		case reflect.TypeFor[context.Context]():
			return &binding.Value{Arg: reflect.ValueOf(&ctx).Elem()}, nil
		case reflect.TypeFor[*binding.Context]():
			return &binding.Value{Arg: reflect.ValueOf(bc)}, nil
		default:
			return &binding.Value{Arg: reflect.ValueOf(bc.Logger)}, nil
		}

	case indexer.KindBindingData:
		raw, ok := bc.Data[p.Name]
		if !ok {
			return nil, fmt.Errorf("no binding data named %q", p.Name)
		}
		v, err := iv.conv.Convert(ctx, raw, p.Type, nil)
		if err != nil {
			return nil, err
		}
		return &binding.Value{Arg: binding.ValueOf(v, p.Type)}, nil

	case indexer.KindInvokeOnly:
		raw, ok := args[p.Name]
		if !ok {
			return nil, fmt.Errorf("missing argument %q", p.Name)
		}
		v, err := iv.conv.Convert(ctx, raw, p.Type, nil)
		if err != nil {
			return nil, err
		}
		return &binding.Value{Arg: binding.ValueOf(v, p.Type)}, nil
	}
	return nil, fmt.Errorf("unknown parameter kind %s", p.Kind)
}

// call invokes the function, turning a returned error or a panic into an
// error.
func call(def *indexer.FunctionDefinition, values []bound) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	in := make([]reflect.Value, len(values))
	for i, b := range values {
		in[i] = b.value.Arg
	}
	out := def.Fn.Call(in)
	if def.ReturnsError && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}

// flush publishes outputs in declaration order. Every output is attempted
// even when an earlier one fails.
func (iv *Invoker) flush(ctx context.Context, values []bound, res *Result) {
	logger := ctxlog.FromContext(ctx)
	var errs []error
	failedParam := ""

	for _, b := range values {
		spec := b.param.Spec
		if spec == nil || spec.Direction == binding.In || b.value.Flush == nil {
			continue
		}
		if err := safeFlush(ctx, b.value.Flush); err != nil {
			logger.Error("Flush failed.", "param", b.param.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", b.param.Name, err))
			if failedParam == "" {
				failedParam = b.param.Name
			}
		}
	}

	for _, b := range values {
		if b.value.Status != nil {
			res.ParameterLogs[b.param.Name] = b.value.Status()
		}
	}

	if len(errs) == 0 {
		return
	}
	flushErr := errors.Join(errs...)
	if res.Fault != nil {
		res.Fault.Err = errors.Join(res.Fault.Err, flushErr)
		return
	}
	param := failedParam
	if len(errs) > 1 {
		param = ""
	}
	res.Fault = &Fault{Stage: StageFlush, Parameter: param, Err: flushErr}
}

// safeBind runs a trigger bind or value factory, turning a panic into an
// error so the values bound before it are still cleaned up.
func safeBind[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func safeFlush(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
