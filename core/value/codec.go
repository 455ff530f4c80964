package value

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// envelope is the wire form of a Value. Scalars carry an explicit type tag so
// unit-bearing quantities reconstruct on the way back; durations travel as
// Go duration strings ("1500ms") and bytes as base64.
type envelope struct {
	Kind    string              `json:"kind"`
	Type    string              `json:"type,omitempty"`
	Value   json.RawMessage     `json:"value,omitempty"`
	Entries map[string]envelope `json:"entries,omitempty"`
	Items   []envelope          `json:"items,omitempty"`
}

// MarshalJSON encodes the value as its wire envelope.
func (v Value) MarshalJSON() ([]byte, error) {
	env, err := v.toEnvelope()
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes a wire envelope, reconstructing tagged scalars.
func (v *Value) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	decoded, err := env.toValue()
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func (v Value) toEnvelope() (envelope, error) {
	switch v.Kind {
	case KindNull:
		return envelope{Kind: "null"}, nil
	case KindScalar:
		raw, err := v.scalarRaw()
		if err != nil {
			return envelope{}, err
		}
		return envelope{Kind: "scalar", Type: v.Scalar.String(), Value: raw}, nil
	case KindMapping:
		entries := make(map[string]envelope, len(v.Map))
		for k, item := range v.Map {
			env, err := item.toEnvelope()
			if err != nil {
				return envelope{}, err
			}
			entries[k] = env
		}
		return envelope{Kind: "mapping", Entries: entries}, nil
	case KindSequence:
		items := make([]envelope, len(v.Seq))
		for i, item := range v.Seq {
			env, err := item.toEnvelope()
			if err != nil {
				return envelope{}, err
			}
			items[i] = env
		}
		return envelope{Kind: "sequence", Items: items}, nil
	default:
		return envelope{}, fmt.Errorf("cannot encode value kind %s", v.Kind)
	}
}

func (v Value) scalarRaw() (json.RawMessage, error) {
	switch v.Scalar {
	case ScalarString:
		return json.Marshal(v.Str)
	case ScalarInt, ScalarSize:
		return json.Marshal(v.Int)
	case ScalarFloat:
		return json.Marshal(v.Float)
	case ScalarBool:
		return json.Marshal(v.Bool)
	case ScalarBytes:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.Bytes))
	case ScalarDuration:
		return json.Marshal(v.Dur.String())
	default:
		return nil, fmt.Errorf("cannot encode scalar type %s", v.Scalar)
	}
}

func (e envelope) toValue() (Value, error) {
	switch e.Kind {
	case "null", "":
		return Null(), nil
	case "scalar":
		return e.scalarValue()
	case "mapping":
		entries := make(map[string]Value, len(e.Entries))
		for k, item := range e.Entries {
			decoded, err := item.toValue()
			if err != nil {
				return Value{}, err
			}
			entries[k] = decoded
		}
		return Mapping(entries), nil
	case "sequence":
		items := make([]Value, len(e.Items))
		for i, item := range e.Items {
			decoded, err := item.toValue()
			if err != nil {
				return Value{}, err
			}
			items[i] = decoded
		}
		return Sequence(items...), nil
	default:
		return Value{}, &UnrepresentableError{TypeDescriptor: "envelope kind " + e.Kind}
	}
}

func (e envelope) scalarValue() (Value, error) {
	switch e.Type {
	case "string":
		var s string
		if err := json.Unmarshal(e.Value, &s); err != nil {
			return Value{}, fmt.Errorf("string scalar: %w", err)
		}
		return String(s), nil
	case "int":
		var i int64
		if err := json.Unmarshal(e.Value, &i); err != nil {
			return Value{}, fmt.Errorf("int scalar: %w", err)
		}
		return Int(i), nil
	case "size":
		var i int64
		if err := json.Unmarshal(e.Value, &i); err != nil {
			return Value{}, fmt.Errorf("size scalar: %w", err)
		}
		return Size(i), nil
	case "float":
		var f float64
		if err := json.Unmarshal(e.Value, &f); err != nil {
			return Value{}, fmt.Errorf("float scalar: %w", err)
		}
		return Float(f), nil
	case "bool":
		var b bool
		if err := json.Unmarshal(e.Value, &b); err != nil {
			return Value{}, fmt.Errorf("bool scalar: %w", err)
		}
		return Bool(b), nil
	case "bytes":
		var s string
		if err := json.Unmarshal(e.Value, &s); err != nil {
			return Value{}, fmt.Errorf("bytes scalar: %w", err)
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return Value{}, fmt.Errorf("bytes scalar: %w", err)
		}
		return Bytes(raw), nil
	case "duration":
		var s string
		if err := json.Unmarshal(e.Value, &s); err != nil {
			return Value{}, fmt.Errorf("duration scalar: %w", err)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return Value{}, fmt.Errorf("duration scalar: %w", err)
		}
		return Duration(d), nil
	default:
		return Value{}, &UnrepresentableError{TypeDescriptor: "scalar type " + e.Type}
	}
}
