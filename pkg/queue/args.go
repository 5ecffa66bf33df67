package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Arguments carries a task's positional and named arguments. Supported value
// types are the JSON primitives (strings, numbers, booleans, nil) and nested
// mappings/sequences of them; anything else fails serialization at submit
// time. Numbers decode as json.Number so integers survive the round trip.
type Arguments struct {
	Positional []any          `json:"positional,omitempty"`
	Named      map[string]any `json:"named,omitempty"`
}

// Args builds positional-only arguments.
func Args(positional ...any) Arguments {
	return Arguments{Positional: positional}
}

// NamedArgs builds named-only arguments.
func NamedArgs(named map[string]any) Arguments {
	return Arguments{Named: named}
}

// Bind decodes the named arguments into v, which should be a pointer to a
// struct with json tags. Typed tasks use it to receive their parameters.
func (a Arguments) Bind(v any) error {
	b, err := json.Marshal(a.Named)
	if err != nil {
		return errors.Join(ErrSerialization, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errors.Join(ErrSerialization, err)
	}
	return nil
}

// encodeEnvelope produces the wire form of an envelope for the queue.
func encodeEnvelope(env *Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Join(ErrSerialization, fmt.Errorf("envelope for task %q: %w", env.Task, err))
	}
	return b, nil
}

// decodeEnvelope restores an envelope from its wire form. Argument values of
// interface type decode with json.Number to preserve integer fidelity.
func decodeEnvelope(b []byte) (*Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, errors.Join(ErrSerialization, err)
	}
	return &env, nil
}

// marshalResult serializes a task's return value for the status record.
func marshalResult(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrSerialization, fmt.Errorf("task result of type %T: %w", v, err))
	}
	return b, nil
}
