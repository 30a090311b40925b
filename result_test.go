package flowpipeline

import (
	"errors"
	"fmt"
	"testing"
)

func TestResult(t *testing.T) {
	t.Run("Success Holds Value", func(t *testing.T) {
		r := Success(42)
		if !r.IsSuccess() || r.IsFailure() {
			t.Fatal("expected success")
		}
		if r.Value() != 42 {
			t.Errorf("expected 42, got %d", r.Value())
		}
		if r.ErrorMessage() != "" || r.ErrorCode() != "" || r.Payload() != nil {
			t.Error("success must not carry failure fields")
		}
		if r.Err() != nil {
			t.Errorf("expected nil error, got %v", r.Err())
		}
	})

	t.Run("Fail Without Code", func(t *testing.T) {
		r := Fail[int]("boom")
		if r.IsSuccess() {
			t.Fatal("expected failure")
		}
		if r.ErrorMessage() != "boom" {
			t.Errorf("expected message 'boom', got %q", r.ErrorMessage())
		}
		if r.ErrorCode() != "" {
			t.Errorf("expected empty code, got %q", r.ErrorCode())
		}
		if r.Value() != 0 {
			t.Errorf("failure must not carry a value, got %d", r.Value())
		}
	})

	t.Run("Fail With Code", func(t *testing.T) {
		r := Fail[string]("boom", "E1")
		if r.ErrorCode() != "E1" {
			t.Errorf("expected code E1, got %q", r.ErrorCode())
		}
		if r.Payload() != nil {
			t.Error("expected no payload")
		}
	})

	t.Run("FailWith Payload", func(t *testing.T) {
		payload := newValidationError("email")
		r := FailWith[int]("invalid", payload, "VALIDATION")
		if r.Payload() != payload {
			t.Error("expected payload to be stored as given")
		}
		if r.ErrorCode() != "VALIDATION" {
			t.Errorf("expected code VALIDATION, got %q", r.ErrorCode())
		}
	})

	t.Run("Err And Unwrap", func(t *testing.T) {
		payload := newValidationError("name")
		r := FailWith[int]("invalid", payload, "VALIDATION")

		value, err := r.Unwrap()
		if value != 0 {
			t.Errorf("expected zero value, got %d", value)
		}
		var flowErr *Error
		if !errors.As(err, &flowErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if flowErr.Message != "invalid" || flowErr.Code != "VALIDATION" {
			t.Errorf("unexpected error fields: %+v", flowErr)
		}
		if err.Error() != "VALIDATION: invalid" {
			t.Errorf("unexpected error text %q", err.Error())
		}

		var v *validationError
		if !errors.As(err, &v) {
			t.Fatal("expected payload to be reachable through errors.As")
		}
		if v.Field != "name" {
			t.Errorf("expected field 'name', got %q", v.Field)
		}
	})

	t.Run("Error Code Predicates", func(t *testing.T) {
		cases := map[string]func(*Error) bool{
			CodeStepException:   (*Error).IsStepException,
			CodeActionException: (*Error).IsActionException,
			CodeConditionFailed: (*Error).IsConditionFailed,
		}
		for code, check := range cases {
			if !check(&Error{Code: code}) {
				t.Errorf("expected predicate for %s to hold", code)
			}
			if check(&Error{Code: "OTHER"}) {
				t.Errorf("predicate for %s matched another code", code)
			}
		}
	})

	t.Run("FromError Keeps Structure", func(t *testing.T) {
		payload := newValidationError("age")
		wrapped := fmt.Errorf("outer: %w", FailWith[int]("too young", payload, "AGE").Err())

		r := FromError[string](wrapped)
		if r.ErrorMessage() != "too young" || r.ErrorCode() != "AGE" {
			t.Errorf("unexpected failure %v", r)
		}
		if r.Payload() != payload {
			t.Error("expected payload to be kept")
		}
	})

	t.Run("FromError With Payload Error", func(t *testing.T) {
		payload := newValidationError("zip")
		r := FromError[int](payload)
		if r.ErrorCode() != "VALIDATION" {
			t.Errorf("expected payload code, got %q", r.ErrorCode())
		}
		if got, ok := TryGetError[*validationError](r); !ok || got != payload {
			t.Error("expected payload to be attached")
		}
	})

	t.Run("FromError Plain", func(t *testing.T) {
		r := FromError[int](errors.New("disk full"))
		if r.ErrorMessage() != "disk full" || r.ErrorCode() != "" {
			t.Errorf("unexpected failure %v", r)
		}
		if FromError[int](nil).ErrorMessage() != DefaultFailureMessage {
			t.Error("expected nil error to use the default message")
		}
	})

	t.Run("String", func(t *testing.T) {
		if got := Success(3).String(); got != "Success(3)" {
			t.Errorf("unexpected %q", got)
		}
		if got := Fail[int]("boom", "E1").String(); got != `Failure("boom", E1)` {
			t.Errorf("unexpected %q", got)
		}
		if got := Fail[int]("boom").String(); got != `Failure("boom")` {
			t.Errorf("unexpected %q", got)
		}
		if got := (Unit{}).String(); got != "()" {
			t.Errorf("unexpected %q", got)
		}
	})
}
