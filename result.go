package flowpipeline

import (
	"errors"
	"fmt"
)

// Result is the outcome of a stage or of a whole chain. It is either a
// success carrying a value of type T or a failure carrying a message, an
// optional code and an optional structured payload.
//
// Results are values: they are built with Success, Fail or FailWith and are
// never modified afterwards. A success never carries failure fields and a
// failure never carries a value.
//
//	r := flowpipeline.Success(42)
//	if r.IsSuccess() {
//	    fmt.Println(r.Value())
//	}
//
//	f := flowpipeline.Fail[int]("order not found", "NOT_FOUND")
//	fmt.Println(f.ErrorMessage(), f.ErrorCode())
type Result[T any] struct {
	value   T
	payload ErrorPayload
	message string
	code    string
	failed  bool
}

// Success returns a successful Result holding value.
func Success[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Fail returns a failed Result with the given message and an optional code.
// Only the first code is used.
func Fail[T any](message string, code ...string) Result[T] {
	return Result[T]{message: message, code: firstCode(code), failed: true}
}

// FailWith returns a failed Result carrying a structured payload in addition
// to the message and optional code.
func FailWith[T any](message string, payload ErrorPayload, code ...string) Result[T] {
	return Result[T]{message: message, code: firstCode(code), payload: payload, failed: true}
}

// FromError converts err into a failed Result. When err is (or wraps) an
// *Error its message, code and payload are kept. When err is (or wraps) an
// ErrorPayload it becomes the payload and its code is used. A nil err is
// treated as a failure with the default message.
func FromError[T any](err error) Result[T] {
	if err == nil {
		return Fail[T](DefaultFailureMessage)
	}
	var flowErr *Error
	if errors.As(err, &flowErr) {
		return Result[T]{message: flowErr.Message, code: flowErr.Code, payload: flowErr.Payload, failed: true}
	}
	var payload ErrorPayload
	if errors.As(err, &payload) {
		return FailWith[T](err.Error(), payload, payload.Code())
	}
	return Fail[T](err.Error())
}

// IsSuccess reports whether the Result is a success.
func (r Result[T]) IsSuccess() bool {
	return !r.failed
}

// IsFailure reports whether the Result is a failure.
func (r Result[T]) IsFailure() bool {
	return r.failed
}

// Value returns the carried value. For a failure it is the zero value of T.
func (r Result[T]) Value() T {
	return r.value
}

// ErrorMessage returns the failure message, or "" for a success.
func (r Result[T]) ErrorMessage() string {
	return r.message
}

// ErrorCode returns the failure code, or "" when none was given.
func (r Result[T]) ErrorCode() string {
	return r.code
}

// Payload returns the structured failure payload, or nil when absent.
func (r Result[T]) Payload() ErrorPayload {
	return r.payload
}

// Err returns the failure as an *Error, or nil for a success.
func (r Result[T]) Err() error {
	if !r.failed {
		return nil
	}
	return &Error{Message: r.message, Code: r.code, Payload: r.payload}
}

// Unwrap splits the Result into the usual Go value and error pair.
func (r Result[T]) Unwrap() (T, error) {
	return r.value, r.Err()
}

// String implements fmt.Stringer.
func (r Result[T]) String() string {
	if !r.failed {
		return fmt.Sprintf("Success(%v)", r.value)
	}
	if r.code == "" {
		return fmt.Sprintf("Failure(%q)", r.message)
	}
	return fmt.Sprintf("Failure(%q, %s)", r.message, r.code)
}

func firstCode(code []string) string {
	if len(code) == 0 {
		return ""
	}
	return code[0]
}
