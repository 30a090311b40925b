package flowpipeline

import "context"

// funcStageName names stages given as inline functions.
const funcStageName = "func"

// Then appends step to c. When the chain runs, step receives the value of c
// and its Result becomes the value of the returned chain.
//
// If c has already failed, step is not invoked and the failure's message
// (or "Pipeline failed" when empty) and code are carried into a Result[Out].
// The payload is not carried because the value type changes; use ThenDo or
// ThenRun when a payload must survive. A panic in step becomes
// Fail("Step execution failed: <panic>", "STEP_EXCEPTION").
func Then[In, Out any](c Chain[In], step Step[In, Out]) Chain[Out] {
	return then(c, c.next(StageThen, valueName(step)), nil,
		func(ctx context.Context, _ *stageRun, in In) Result[Out] {
			return step.Process(ctx, in)
		})
}

// ThenFunc appends an inline step function to c. It behaves like Then.
//
//	result := flowpipeline.ThenFunc(flowpipeline.Start(nil, 5),
//	    func(_ context.Context, v int) flowpipeline.Result[int] {
//	        return flowpipeline.Success(v * 2)
//	    },
//	).Execute(ctx) // Success(10)
func ThenFunc[In, Out any](c Chain[In], fn func(context.Context, In) Result[Out]) Chain[Out] {
	return then(c, c.next(StageThen, funcStageName), nil,
		func(ctx context.Context, _ *stageRun, in In) Result[Out] {
			return fn(ctx, in)
		})
}

// ThenResolve appends a step of type S looked up through the chain's
// Provider. Each execution of the stage opens a new scope, resolves S from it,
// invokes it and closes the scope whatever the outcome. S comes first in the
// type parameter list so only S and Out need spelling out:
//
//	invoices := flowpipeline.ThenResolve[*PriceOrder, Invoice](orders)
//
// A chain started without a Provider fails the stage with STEP_EXCEPTION and
// a message naming S. Resolution errors fail it the same way.
func ThenResolve[S Step[In, Out], Out, In any](c Chain[In]) Chain[Out] {
	provider := c.provider
	return then(c, c.next(StageThen, typeName[S]()), nil, resolvedStep[S, Out, In](provider))
}

// ThenWhen appends step guarded by condition. When the chain reaches the
// stage with a success, condition sees the value: if it returns false the
// stage yields Fail("Condition not met", "CONDITION_FAILED") without invoking
// step. Otherwise it behaves like Then.
//
//	large := flowpipeline.ThenWhenFunc(flowpipeline.Start(nil, 15),
//	    func(_ context.Context, v int) bool { return v > 10 },
//	    func(_ context.Context, v int) flowpipeline.Result[string] {
//	        return flowpipeline.Success(fmt.Sprintf("Large: %d", v))
//	    },
//	)
func ThenWhen[In, Out any](c Chain[In], condition func(context.Context, In) bool, step Step[In, Out]) Chain[Out] {
	return then(c, c.next(StageThenWhen, valueName(step)), condition,
		func(ctx context.Context, _ *stageRun, in In) Result[Out] {
			return step.Process(ctx, in)
		})
}

// ThenWhenFunc is ThenWhen with an inline step function.
func ThenWhenFunc[In, Out any](c Chain[In], condition func(context.Context, In) bool, fn func(context.Context, In) Result[Out]) Chain[Out] {
	return then(c, c.next(StageThenWhen, funcStageName), condition,
		func(ctx context.Context, _ *stageRun, in In) Result[Out] {
			return fn(ctx, in)
		})
}

// ThenWhenResolve is ThenWhen with a step resolved like ThenResolve. The
// condition is evaluated before any scope is opened.
func ThenWhenResolve[S Step[In, Out], Out, In any](c Chain[In], condition func(context.Context, In) bool) Chain[Out] {
	provider := c.provider
	return then(c, c.next(StageThenWhen, typeName[S]()), condition, resolvedStep[S, Out, In](provider))
}

// resolvedStep invokes a step of type S fetched from a fresh scope.
func resolvedStep[S Step[In, Out], Out, In any](provider Provider) func(context.Context, *stageRun, In) Result[Out] {
	return func(ctx context.Context, st *stageRun, in In) Result[Out] {
		var out Result[Out]
		err := withResolved(ctx, provider, st, func(step S) {
			out = step.Process(ctx, in)
		})
		if err != nil {
			return stepFault[Out](err)
		}
		return out
	}
}

// then appends a value-transforming stage. condition may be nil.
func then[In, Out any](
	c Chain[In],
	info stageInfo,
	condition func(context.Context, In) bool,
	invoke func(context.Context, *stageRun, In) Result[Out],
) Chain[Out] {
	prev := c.predecessor()
	return derive(c, func(ctx context.Context, x *execution) Result[Out] {
		in := prev(ctx, x)
		if in.IsFailure() {
			skipStage(ctx, x, info, in)
			message := in.ErrorMessage()
			if message == "" {
				message = DefaultFailureMessage
			}
			return Fail[Out](message, in.ErrorCode())
		}
		return runStage(ctx, x, info, func(ctx context.Context, st *stageRun) Result[Out] {
			return guardStep(func() Result[Out] {
				if condition != nil && !condition(ctx, in.Value()) {
					return Fail[Out](ConditionNotMetMessage, CodeConditionFailed)
				}
				return invoke(ctx, st, in.Value())
			})
		})
	})
}
