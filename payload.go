package flowpipeline

import (
	"time"

	"github.com/zoobzio/clockz"
)

// ErrorPayload is the contract for structured failure detail attached to a
// Result. Concrete payload types are defined by pipeline authors, usually by
// embedding BaseError:
//
//	type ValidationError struct {
//	    flowpipeline.BaseError
//	    Field string
//	}
//
//	func NewValidationError(field string) *ValidationError {
//	    return &ValidationError{
//	        BaseError: flowpipeline.NewBaseError(field+" is required", "VALIDATION"),
//	        Field:     field,
//	    }
//	}
//
// The engine stores payloads opaquely and never looks at their fields.
type ErrorPayload interface {
	Message() string
	Code() string
	OccurredAt() time.Time
}

// BaseError is an embeddable ErrorPayload implementation. It also implements
// error, so payloads built on it can be returned as plain errors too.
type BaseError struct {
	occurredAt time.Time
	message    string
	code       string
}

// NewBaseError returns a BaseError stamped with the current time.
func NewBaseError(message, code string) BaseError {
	return NewBaseErrorAt(clockz.RealClock, message, code)
}

// NewBaseErrorAt returns a BaseError stamped with clock's current time.
func NewBaseErrorAt(clock clockz.Clock, message, code string) BaseError {
	return BaseError{message: message, code: code, occurredAt: clock.Now()}
}

// Message returns the payload message.
func (e BaseError) Message() string { return e.message }

// Code returns the payload code.
func (e BaseError) Code() string { return e.code }

// OccurredAt returns when the payload was created.
func (e BaseError) OccurredAt() time.Time { return e.occurredAt }

// Error implements the error interface.
func (e BaseError) Error() string { return e.message }

// TryGetError returns the payload of r viewed as E. The second return value
// is true only when r is a failure and its payload's dynamic type is E (or
// implements E when E is an interface). Successes, failures without a payload
// and payloads of another type all report false.
//
//	if v, ok := flowpipeline.TryGetError[*ValidationError](result); ok {
//	    log.Printf("invalid field %s", v.Field)
//	}
func TryGetError[E ErrorPayload, T any](r Result[T]) (E, bool) {
	var zero E
	if r.IsSuccess() || r.payload == nil {
		return zero, false
	}
	e, ok := r.payload.(E)
	if !ok {
		return zero, false
	}
	return e, true
}

// GetErrorAs returns the payload of r viewed as E, or the zero value of E
// (nil for pointer and interface payload types) under the same conditions
// TryGetError reports false.
func GetErrorAs[E ErrorPayload, T any](r Result[T]) E {
	e, _ := TryGetError[E](r)
	return e
}
