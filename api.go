package flowpipeline

import "context"

// Step is a unit of work that turns a value of type In into a Result[Out].
// Steps are appended to a chain with Then, ThenWhen or their resolved and
// function variants.
//
// A step reports an expected failure by returning a failed Result. A panic
// inside Process is not expected: the chain recovers it and turns it into a
// failure with code STEP_EXCEPTION.
//
//	type ReserveStock struct {
//	    Inventory InventoryService
//	}
//
//	func (s *ReserveStock) Process(ctx context.Context, o Order) flowpipeline.Result[Reservation] {
//	    res, err := s.Inventory.Reserve(ctx, o.Items)
//	    if err != nil {
//	        return flowpipeline.Fail[Reservation](err.Error(), "STOCK")
//	    }
//	    return flowpipeline.Success(res)
//	}
//
// The context is the one passed to Chain.Execute. Long-running steps should
// watch ctx.Done(); the chain itself never aborts a running step.
type Step[In, Out any] interface {
	Process(ctx context.Context, input In) Result[Out]
}

// StepFunc adapts an ordinary function to the Step interface.
type StepFunc[In, Out any] func(ctx context.Context, input In) Result[Out]

// Process implements Step.
func (f StepFunc[In, Out]) Process(ctx context.Context, input In) Result[Out] {
	return f(ctx, input)
}

// Action is a side effect that receives the current value of the chain. It
// never changes that value: on success the chain carries on with exactly the
// Result the action was given. A returned error or a panic becomes a failure
// with code ACTION_EXCEPTION.
type Action[T any] interface {
	Execute(ctx context.Context, input T) error
}

// ActionFunc adapts an ordinary function to the Action interface.
type ActionFunc[T any] func(ctx context.Context, input T) error

// Execute implements Action.
func (f ActionFunc[T]) Execute(ctx context.Context, input T) error {
	return f(ctx, input)
}

// Runner is a side effect that takes no input, appended with ThenRun. It has
// the same failure rules as Action.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts an ordinary function to the Runner interface.
type RunnerFunc func(ctx context.Context) error

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Lift adapts a function in the usual value and error style to a step. A
// returned error becomes a failure through FromError, so an *Error or an
// ErrorPayload returned by fn keeps its code and payload.
//
//	parse := flowpipeline.Lift(func(_ context.Context, raw string) (int, error) {
//	    return strconv.Atoi(raw)
//	})
//	result := flowpipeline.Then[string, int](flowpipeline.Start(nil, "42"), parse).Execute(ctx)
func Lift[In, Out any](fn func(context.Context, In) (Out, error)) StepFunc[In, Out] {
	return func(ctx context.Context, input In) Result[Out] {
		out, err := fn(ctx, input)
		if err != nil {
			return FromError[Out](err)
		}
		return Success(out)
	}
}
