package flowpipeline

import (
	"errors"
	"fmt"
)

// panicError turns a recovered panic value into an error.
func panicError(r any) error {
	switch v := r.(type) {
	case error:
		return v
	case string:
		return errors.New(v)
	default:
		return fmt.Errorf("%v", v)
	}
}

// guardStep runs fn and converts a panic into a STEP_EXCEPTION failure.
func guardStep[Out any](fn func() Result[Out]) (result Result[Out]) {
	defer func() {
		if r := recover(); r != nil {
			result = stepFault[Out](panicError(r))
		}
	}()
	return fn()
}

// guardAction runs fn and converts a panic into a returned error.
func guardAction(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return fn()
}

func stepFault[Out any](err error) Result[Out] {
	return Fail[Out](stepFailurePrefix+err.Error(), CodeStepException)
}

func actionFault[T any](err error) Result[T] {
	return Fail[T](actionFailurePrefix+err.Error(), CodeActionException)
}
