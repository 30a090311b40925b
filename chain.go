package flowpipeline

import (
	"context"
	"errors"
	"reflect"
	"strconv"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Chain is an immutable, lazily executed pipeline whose current value has
// type T.
//
// A chain is started with Start or StartUnit and grown one stage at a time.
// Every call that adds a stage returns a new Chain and leaves the receiver
// untouched, so a prefix can be shared and extended in different ways:
//
//	base := flowpipeline.Start(nil, 5)
//	doubled := flowpipeline.ThenFunc(base, func(_ context.Context, v int) flowpipeline.Result[int] {
//	    return flowpipeline.Success(v * 2)
//	})
//	label := flowpipeline.ThenFunc(doubled, func(_ context.Context, v int) flowpipeline.Result[string] {
//	    return flowpipeline.Success(fmt.Sprintf("value=%d", v))
//	})
//
//	label.Execute(ctx)   // Success("value=10")
//	doubled.Execute(ctx) // Success(10), base and doubled are still usable
//
// Nothing runs until Execute is called. Execute runs the stages in the order
// they were appended and stops at the first failure: later stages are
// reported as skipped and never resolved, evaluated or invoked. Panics and
// action errors are converted into failures, so Execute always returns a
// well-formed Result.
//
// There is no caching: each Execute re-runs the whole chain from the start
// value. Chains hold no mutable state of their own and may be executed
// concurrently.
//
// # Type-changing stages
//
// Go methods cannot introduce type parameters, so the stages that change the
// value type are package functions (Then, ThenFunc, ThenResolve, ThenWhen,
// ThenWhenFunc, ThenWhenResolve). Side-effect stages keep the type and are
// also available as methods (ThenDo, ThenDoFunc, ThenRun, ThenRunFunc).
//
// # Observability
//
// The chain returned by Start owns a metrics registry, a tracer and hooks,
// shared by every chain derived from it:
//
// Metrics:
//   - chain.executions.total, chain.successes.total, chain.failures.total
//   - chain.step.exceptions.total, chain.action.exceptions.total
//   - chain.condition.failed.total, chain.scope.release.failures.total
//   - chain.stages.completed, chain.duration.ms (gauges, last execution)
//
// Traces:
//   - chain.execute: one span per Execute call
//   - chain.stage: one child span per invoked stage
//
// Events (via hooks):
//   - chain.stage_complete: a stage ran, successfully or not
//   - chain.stage_skipped: a stage was bypassed because an earlier one failed
//   - chain.complete: an execution finished
type Chain[T any] struct {
	provider Provider
	obs      *observer
	clock    clockz.Clock
	run      func(ctx context.Context, x *execution) Result[T]
	stages   int
}

// ErrUnstartedChain is returned when hooks are registered on a zero Chain,
// which has no observer until it is created with Start.
var ErrUnstartedChain = errors.New("flowpipeline: chain was not created with Start")

// execution is the state of one Execute call.
type execution struct {
	obs       *observer
	clock     clockz.Clock
	id        string
	total     int
	completed int
}

// stageInfo identifies one appended stage.
type stageInfo struct {
	kind   StageKind
	name   string
	number int
}

// stageRun collects what a stage reports besides its Result.
type stageRun struct {
	releaseErr error
}

// Start begins a chain whose first value is value. provider resolves the
// stages added with the Resolve variants and may be nil when none are used.
func Start[T any](provider Provider, value T) Chain[T] {
	return Chain[T]{
		provider: provider,
		obs:      newObserver(),
		run: func(context.Context, *execution) Result[T] {
			return Success(value)
		},
	}
}

// StartUnit begins a chain that carries no data.
func StartUnit(provider Provider) Chain[Unit] {
	return Start(provider, Unit{})
}

// Execute runs the chain and returns its final Result. ctx is handed to
// every stage, predicate and resolution; it is advisory, the chain never
// aborts a stage on its own. A nil ctx is replaced with context.Background.
func (c Chain[T]) Execute(ctx context.Context) Result[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.obs == nil {
		c.obs = newObserver()
	}
	run := c.run
	if run == nil {
		run = func(context.Context, *execution) Result[T] {
			var zero T
			return Success(zero)
		}
	}

	x := &execution{
		obs:   c.obs,
		clock: c.getClock(),
		id:    uuid.NewString(),
		total: c.stages,
	}

	c.obs.metrics.Counter(ChainExecutionsTotal).Inc()
	ctx, span := c.obs.tracer.StartSpan(ctx, ChainExecuteSpan)
	span.SetTag(ChainTagRunID, x.id)
	span.SetTag(ChainTagStageCount, strconv.Itoa(c.stages))

	start := x.clock.Now()
	result := run(ctx, x)
	elapsed := x.clock.Since(start)

	c.obs.metrics.Gauge(ChainStagesCompleted).Set(float64(x.completed))
	c.obs.metrics.Gauge(ChainDurationMs).Set(float64(elapsed.Milliseconds()))
	if result.IsSuccess() {
		span.SetTag(ChainTagSuccess, "true")
		c.obs.metrics.Counter(ChainSuccessesTotal).Inc()
	} else {
		span.SetTag(ChainTagSuccess, "false")
		span.SetTag(ChainTagErrorCode, result.ErrorCode())
		span.SetTag(ChainTagError, result.ErrorMessage())
		c.obs.metrics.Counter(ChainFailuresTotal).Inc()
	}
	span.Finish()

	c.obs.emit(ctx, ChainEventComplete, ChainEvent{
		RunID:       x.id,
		TotalStages: x.total,
		Completed:   x.completed,
		Success:     result.IsSuccess(),
		Message:     result.ErrorMessage(),
		Code:        result.ErrorCode(),
		Duration:    elapsed,
		Timestamp:   x.clock.Now(),
	})

	return result
}

// Len returns the number of stages appended so far.
func (c Chain[T]) Len() int {
	return c.stages
}

// Provider returns the provider the chain was started with.
func (c Chain[T]) Provider() Provider {
	return c.provider
}

// WithClock returns a copy of the chain that uses clock for timestamps and
// durations. The receiver keeps its own clock.
func (c Chain[T]) WithClock(clock clockz.Clock) Chain[T] {
	c.clock = clock
	return c
}

func (c Chain[T]) getClock() clockz.Clock {
	if c.clock == nil {
		return clockz.RealClock
	}
	return c.clock
}

// Metrics returns the metrics registry shared by this chain and every chain
// derived from the same Start call.
func (c Chain[T]) Metrics() *metricz.Registry {
	if c.obs == nil {
		return nil
	}
	return c.obs.metrics
}

// Tracer returns the shared tracer.
func (c Chain[T]) Tracer() *tracez.Tracer {
	if c.obs == nil {
		return nil
	}
	return c.obs.tracer
}

// Close shuts down the shared observability components. Chains derived from
// the same Start call stop emitting events afterwards.
func (c Chain[T]) Close() error {
	if c.obs == nil {
		return nil
	}
	return c.obs.close()
}

// OnStageComplete registers a handler called after each stage runs.
// Handlers are called asynchronously.
func (c Chain[T]) OnStageComplete(handler func(context.Context, ChainEvent) error) error {
	return c.hook(ChainEventStageComplete, handler)
}

// OnStageSkipped registers a handler called for each stage bypassed after a
// failure.
func (c Chain[T]) OnStageSkipped(handler func(context.Context, ChainEvent) error) error {
	return c.hook(ChainEventStageSkipped, handler)
}

// OnComplete registers a handler called when an execution finishes.
func (c Chain[T]) OnComplete(handler func(context.Context, ChainEvent) error) error {
	return c.hook(ChainEventComplete, handler)
}

func (c Chain[T]) hook(key hookz.Key, handler func(context.Context, ChainEvent) error) error {
	if c.obs == nil {
		return ErrUnstartedChain
	}
	_, err := c.obs.hooks.Hook(key, handler)
	return err
}

// next returns the description of a stage appended to c.
func (c Chain[T]) next(kind StageKind, name string) stageInfo {
	return stageInfo{kind: kind, name: name, number: c.stages + 1}
}

// derive builds the chain that follows c with one more stage.
func derive[In, Out any](c Chain[In], run func(ctx context.Context, x *execution) Result[Out]) Chain[Out] {
	return Chain[Out]{
		provider: c.provider,
		obs:      c.obs,
		clock:    c.clock,
		run:      run,
		stages:   c.stages + 1,
	}
}

// predecessor returns the function forcing c, defaulting to the zero value
// for a zero Chain.
func (c Chain[T]) predecessor() func(context.Context, *execution) Result[T] {
	if c.run != nil {
		return c.run
	}
	return func(context.Context, *execution) Result[T] {
		var zero T
		return Success(zero)
	}
}

// runStage wraps the invocation of one stage with its span, metrics and event.
func runStage[T any](ctx context.Context, x *execution, info stageInfo, body func(context.Context, *stageRun) Result[T]) Result[T] {
	ctx, span := x.obs.tracer.StartSpan(ctx, ChainStageSpan)
	span.SetTag(ChainTagRunID, x.id)
	span.SetTag(ChainTagStageNumber, strconv.Itoa(info.number))
	span.SetTag(ChainTagStageKind, string(info.kind))
	span.SetTag(ChainTagStageName, info.name)

	st := &stageRun{}
	start := x.clock.Now()
	result := body(ctx, st)
	elapsed := x.clock.Since(start)

	if st.releaseErr != nil {
		x.obs.metrics.Counter(ChainScopeReleaseFailuresTotal).Inc()
	}
	if result.IsSuccess() {
		x.completed++
		span.SetTag(ChainTagSuccess, "true")
	} else {
		x.obs.countFailure(result.ErrorCode())
		span.SetTag(ChainTagSuccess, "false")
		span.SetTag(ChainTagErrorCode, result.ErrorCode())
		span.SetTag(ChainTagError, result.ErrorMessage())
	}
	span.Finish()

	x.obs.emit(ctx, ChainEventStageComplete, ChainEvent{
		RunID:        x.id,
		StageName:    info.name,
		StageKind:    info.kind,
		StageNumber:  info.number,
		TotalStages:  x.total,
		Success:      result.IsSuccess(),
		Message:      result.ErrorMessage(),
		Code:         result.ErrorCode(),
		ReleaseError: st.releaseErr,
		Duration:     elapsed,
		Timestamp:    x.clock.Now(),
	})
	return result
}

// skipStage reports a stage bypassed because failed arrived from upstream.
func skipStage[T any](ctx context.Context, x *execution, info stageInfo, failed Result[T]) {
	x.obs.emit(ctx, ChainEventStageSkipped, ChainEvent{
		RunID:       x.id,
		StageName:   info.name,
		StageKind:   info.kind,
		StageNumber: info.number,
		TotalStages: x.total,
		Message:     failed.ErrorMessage(),
		Code:        failed.ErrorCode(),
		Skipped:     true,
		Timestamp:   x.clock.Now(),
	})
}

// withResolved opens a scope on provider, resolves S and hands it to use.
// The scope is closed on every exit path, panics included; a close error is
// recorded on st and does not change the outcome.
func withResolved[S any](ctx context.Context, provider Provider, st *stageRun, use func(S)) error {
	if provider == nil {
		return &unresolvedError{typ: reflect.TypeFor[S]()}
	}
	scope, err := provider.CreateScope(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := scope.Close(); cerr != nil {
			st.releaseErr = cerr
		}
	}()

	instance, err := Resolve[S](ctx, scope)
	if err != nil {
		return err
	}
	use(instance)
	return nil
}

// unresolvedError reports a resolved stage on a chain started without a provider.
type unresolvedError struct {
	typ reflect.Type
}

func (e *unresolvedError) Error() string {
	return "Cannot resolve " + e.typ.String() + " without a service provider"
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

func valueName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
