package flowpipeline

import (
	"context"
	"fmt"
	"reflect"
)

// Provider is the dependency resolution facility a chain can be started with.
// Stages added with ThenResolve, ThenWhenResolve, ThenDoResolve and
// ThenRunResolve look their implementation up through it.
//
// Every resolved stage gets its own scope: the chain calls CreateScope right
// before the stage runs and closes the scope as soon as the stage returns or
// panics. Container is the implementation shipped with this package; any
// other container can be plugged in by implementing Provider and Scope.
type Provider interface {
	CreateScope(ctx context.Context) (Scope, error)
}

// Scope resolves instances for the lifetime of one stage.
type Scope interface {
	// Resolve returns an instance of t. An unknown t is an error.
	Resolve(ctx context.Context, t reflect.Type) (any, error)
	// Close releases everything the scope acquired.
	Close() error
}

// Resolve fetches an instance of T from scope.
//
//	repo, err := flowpipeline.Resolve[OrderRepository](ctx, scope)
func Resolve[T any](ctx context.Context, scope Scope) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()
	v, err := scope.Resolve(ctx, t)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("resolved %T is not assignable to %s", v, t)
	}
	return typed, nil
}
