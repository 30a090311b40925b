package flowpipeline

import "context"

// ThenDo appends action, which receives the current value without being
// able to replace it. On success the chain carries on with exactly the
// Result the action saw. If the chain has already failed, the failing Result
// passes through untouched, payload included. An error returned by the action,
// or a panic, yields Fail("Action execution failed: <error>", "ACTION_EXCEPTION").
//
//	audited := order.ThenDo(flowpipeline.ActionFunc[Order](func(ctx context.Context, o Order) error {
//	    return audit.Record(ctx, "order.accepted", o.ID)
//	}))
func (c Chain[T]) ThenDo(action Action[T]) Chain[T] {
	return do(c, c.next(StageThenDo, valueName(action)),
		func(ctx context.Context, _ *stageRun, in T) error {
			return action.Execute(ctx, in)
		})
}

// ThenDoFunc is ThenDo with an inline function.
func (c Chain[T]) ThenDoFunc(fn func(context.Context, T) error) Chain[T] {
	return do(c, c.next(StageThenDo, funcStageName),
		func(ctx context.Context, _ *stageRun, in T) error {
			return fn(ctx, in)
		})
}

// ThenDoResolve is ThenDo with an action of type A looked up through the
// chain's Provider in a scope opened and closed around the call.
//
//	notified := flowpipeline.ThenDoResolve[*NotifyCustomer](orders)
func ThenDoResolve[A Action[T], T any](c Chain[T]) Chain[T] {
	provider := c.provider
	return do(c, c.next(StageThenDo, typeName[A]()),
		func(ctx context.Context, st *stageRun, in T) error {
			var actionErr error
			if err := withResolved(ctx, provider, st, func(action A) {
				actionErr = action.Execute(ctx, in)
			}); err != nil {
				return err
			}
			return actionErr
		})
}

// ThenRun appends runner, a side effect that ignores the current value. It
// follows the same rules as ThenDo.
func (c Chain[T]) ThenRun(runner Runner) Chain[T] {
	return do(c, c.next(StageThenRun, valueName(runner)),
		func(ctx context.Context, _ *stageRun, _ T) error {
			return runner.Run(ctx)
		})
}

// ThenRunFunc is ThenRun with an inline function.
func (c Chain[T]) ThenRunFunc(fn func(context.Context) error) Chain[T] {
	return do(c, c.next(StageThenRun, funcStageName),
		func(ctx context.Context, _ *stageRun, _ T) error {
			return fn(ctx)
		})
}

// ThenRunResolve is ThenRun with a runner of type R looked up through the
// chain's Provider.
func ThenRunResolve[R Runner, T any](c Chain[T]) Chain[T] {
	provider := c.provider
	return do(c, c.next(StageThenRun, typeName[R]()),
		func(ctx context.Context, st *stageRun, _ T) error {
			var runErr error
			if err := withResolved(ctx, provider, st, func(runner R) {
				runErr = runner.Run(ctx)
			}); err != nil {
				return err
			}
			return runErr
		})
}

// do appends a value-preserving stage.
func do[T any](c Chain[T], info stageInfo, invoke func(context.Context, *stageRun, T) error) Chain[T] {
	prev := c.predecessor()
	return derive(c, func(ctx context.Context, x *execution) Result[T] {
		in := prev(ctx, x)
		if in.IsFailure() {
			skipStage(ctx, x, info, in)
			return in
		}
		return runStage(ctx, x, info, func(ctx context.Context, st *stageRun) Result[T] {
			if err := guardAction(func() error { return invoke(ctx, st, in.Value()) }); err != nil {
				return actionFault[T](err)
			}
			return in
		})
	})
}
