// Package flowpipeline builds typed processing pipelines out of steps and
// side-effecting actions, chained fluently and run lazily.
//
// # Overview
//
// A pipeline is a Chain[T]: an immutable value describing what to do with a
// start value. Stages are appended one at a time and nothing runs until
// Execute is called. Execution stops at the first failure and every fault
// (a panic, or an error returned by an action) is turned into a structured
// failure, so callers always get back a Result[T].
//
//	result := flowpipeline.ThenFunc(
//	    flowpipeline.ThenFunc(flowpipeline.Start(nil, 5),
//	        func(_ context.Context, v int) flowpipeline.Result[int] { return flowpipeline.Success(v * 2) }),
//	    func(_ context.Context, v int) flowpipeline.Result[int] { return flowpipeline.Success(v + 10) },
//	).Execute(ctx)
//	// result: Success(20)
//
// # Core Concepts
//
//   - Result[T]: a success holding a T, or a failure holding a message, an
//     optional code and an optional ErrorPayload.
//   - Step[In, Out]: transforms a value, appended with Then and ThenWhen.
//   - Action[T] and Runner: side effects appended with ThenDo and ThenRun.
//     They never change the carried value.
//   - Provider and Scope: optional dependency resolution. The Resolve
//     variants of each operation look their implementation up by type in a
//     scope opened for that stage alone and closed right after it.
//   - Unit: the value of chains that carry no data (StartUnit).
//
// Each capability can be supplied three ways: resolved by type
// (ThenResolve, ThenWhenResolve, ThenDoResolve, ThenRunResolve), as a
// concrete instance (Then, ThenWhen, ThenDo, ThenRun), or as an inline
// function (ThenFunc, ThenWhenFunc, ThenDoFunc, ThenRunFunc).
//
// # Failures
//
// The engine produces these failures on its own:
//
//   - Upstream failure through a value-transforming stage: message and code
//     are kept (an empty message becomes "Pipeline failed"), the payload is
//     dropped.
//   - Upstream failure through a side-effect stage: the failing Result
//     passes through unchanged, payload included.
//   - False ThenWhen condition: Fail("Condition not met", "CONDITION_FAILED").
//   - Panicking step, condition or resolution: "Step execution failed: ..."
//     with code STEP_EXCEPTION.
//   - Failing or panicking action: "Action execution failed: ..." with code
//     ACTION_EXCEPTION.
//
// Structured detail travels as an ErrorPayload and is read back with
// TryGetError or GetErrorAs:
//
//	if v, ok := flowpipeline.TryGetError[*ValidationError](result); ok {
//	    log.Printf("field %s rejected", v.Field)
//	}
//
// Result.Err and Result.Unwrap bridge back to plain Go errors.
//
// # Dependency Resolution
//
// Container is a Provider backed by samber/do injectors, with transient,
// scoped and singleton lifetimes:
//
//	c := flowpipeline.NewContainer()
//	_ = flowpipeline.Register(c, flowpipeline.Transient,
//	    func(context.Context, flowpipeline.Scope) (*Doubler, error) { return &Doubler{}, nil })
//
//	result := flowpipeline.ThenResolve[*Doubler, int](flowpipeline.Start(c, 21)).Execute(ctx)
//
// # Context
//
// The context given to Execute reaches every stage, condition and
// resolution. It is advisory: stages that care should watch ctx.Done(), the
// engine never interrupts them.
//
// # Observability
//
// Chains report through metricz counters and gauges, tracez spans and hookz
// events; see Chain for the keys. Use WithClock with a clockz fake clock to
// control timestamps in tests.
package flowpipeline
