package flowpipeline

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// snapshot is the wire form of a Result.
type snapshot[T any] struct {
	Value   T              `msgpack:"value,omitempty"`
	Payload *PayloadRecord `msgpack:"payload,omitempty"`
	Message string         `msgpack:"message,omitempty"`
	Code    string         `msgpack:"code,omitempty"`
	Failed  bool           `msgpack:"failed"`
}

// PayloadRecord is the decoded form of an ErrorPayload. Only the contract
// fields survive encoding, plus the name of the original payload type.
type PayloadRecord struct {
	At   time.Time `msgpack:"occurred_at"`
	Type string    `msgpack:"type"`
	Msg  string    `msgpack:"message"`
	Kind string    `msgpack:"code"`
}

// Message implements ErrorPayload.
func (p *PayloadRecord) Message() string { return p.Msg }

// Code implements ErrorPayload.
func (p *PayloadRecord) Code() string { return p.Kind }

// OccurredAt implements ErrorPayload.
func (p *PayloadRecord) OccurredAt() time.Time { return p.At }

// EncodeResult serializes r with msgpack, e.g. to hand a chain's outcome to
// another process or to store it next to a job record. A payload is reduced
// to a PayloadRecord.
func EncodeResult[T any](r Result[T]) ([]byte, error) {
	s := snapshot[T]{
		Value:   r.value,
		Message: r.message,
		Code:    r.code,
		Failed:  r.failed,
	}
	if r.payload != nil {
		s.Payload = &PayloadRecord{
			Type: valueName(r.payload),
			Msg:  r.payload.Message(),
			Kind: r.payload.Code(),
			At:   r.payload.OccurredAt(),
		}
	}
	return msgpack.Marshal(&s)
}

// DecodeResult restores a Result written by EncodeResult. A payload comes
// back as a *PayloadRecord, so TryGetError[*PayloadRecord] retrieves it.
func DecodeResult[T any](data []byte) (Result[T], error) {
	var s snapshot[T]
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return Result[T]{}, err
	}
	if !s.Failed {
		return Success(s.Value), nil
	}
	r := Result[T]{message: s.Message, code: s.Code, failed: true}
	if s.Payload != nil {
		r.payload = s.Payload
	}
	return r, nil
}
