package flowpipeline

import (
	"testing"

	"github.com/zoobzio/clockz"
)

func TestEncodeResult(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		data, err := EncodeResult(Success(order{ID: "o-1", Total: 12, Items: []string{"a"}}))
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		r, err := DecodeResult[order](data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !r.IsSuccess() || r.Value().ID != "o-1" || r.Value().Total != 12 || len(r.Value().Items) != 1 {
			t.Errorf("unexpected %v", r)
		}
	})

	t.Run("Failure Keeps Message And Code", func(t *testing.T) {
		data, err := EncodeResult(Fail[int]("Condition not met", CodeConditionFailed))
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		r, err := DecodeResult[int](data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !r.IsFailure() || r.ErrorCode() != CodeConditionFailed {
			t.Errorf("unexpected %v", r)
		}
		if r.ErrorMessage() != ConditionNotMetMessage {
			t.Errorf("unexpected message %q", r.ErrorMessage())
		}
		if r.Payload() != nil {
			t.Error("expected no payload")
		}
	})

	t.Run("Payload Becomes Record", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		payload := &validationError{BaseError: NewBaseErrorAt(clock, "email is invalid", "VALIDATION"), Field: "email"}

		data, err := EncodeResult(FailWith[string]("invalid", payload, "VALIDATION"))
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		r, err := DecodeResult[string](data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}

		if _, ok := TryGetError[*validationError](r); ok {
			t.Error("concrete payload types do not survive encoding")
		}
		rec, ok := TryGetError[*PayloadRecord](r)
		if !ok {
			t.Fatal("expected a payload record")
		}
		if rec.Type != "*flowpipeline.validationError" {
			t.Errorf("unexpected payload type %q", rec.Type)
		}
		if rec.Message() != "email is invalid" || rec.Code() != "VALIDATION" {
			t.Errorf("unexpected record %+v", rec)
		}
		if !rec.OccurredAt().Equal(clock.Now()) {
			t.Errorf("expected %v, got %v", clock.Now(), rec.OccurredAt())
		}
	})

	t.Run("Invalid Data", func(t *testing.T) {
		if _, err := DecodeResult[int]([]byte{0xc1}); err == nil {
			t.Error("expected decode error")
		}
	})
}
