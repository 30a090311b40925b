package flowpipeline

import (
	"fmt"
)

// Failure codes produced by the engine itself.
const (
	CodeStepException   = "STEP_EXCEPTION"
	CodeActionException = "ACTION_EXCEPTION"
	CodeConditionFailed = "CONDITION_FAILED"
)

// Failure messages produced by the engine itself.
const (
	DefaultFailureMessage  = "Pipeline failed"
	ConditionNotMetMessage = "Condition not met"

	stepFailurePrefix   = "Step execution failed: "
	actionFailurePrefix = "Action execution failed: "
)

// Error is the error form of a failed Result. It is what Result.Err returns,
// which lets failures travel through code that speaks plain Go errors:
//
//	value, err := chain.Execute(ctx).Unwrap()
//	if err != nil {
//	    var flowErr *flowpipeline.Error
//	    if errors.As(err, &flowErr) && flowErr.Code == "NOT_FOUND" {
//	        // ...
//	    }
//	}
//
// When the payload is itself an error, errors.Is and errors.As reach it
// through Unwrap.
type Error struct {
	Payload ErrorPayload
	Message string
	Code    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the payload when it implements error, otherwise nil.
func (e *Error) Unwrap() error {
	if err, ok := e.Payload.(error); ok {
		return err
	}
	return nil
}

// IsStepException reports whether the failure came from a faulting step.
func (e *Error) IsStepException() bool {
	return e.Code == CodeStepException
}

// IsActionException reports whether the failure came from a faulting action.
func (e *Error) IsActionException() bool {
	return e.Code == CodeActionException
}

// IsConditionFailed reports whether the failure came from a false ThenWhen predicate.
func (e *Error) IsConditionFailed() bool {
	return e.Code == CodeConditionFailed
}
