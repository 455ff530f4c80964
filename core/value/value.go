// Package value defines the typed envelope exchanged with the external
// interpreter: scalar, mapping, sequence, or null. Both the bridge wire
// protocol and compatibility comparison canonicalize to this shape.
package value

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind discriminates the envelope variants.
type Kind uint8

const (
	KindNull Kind = iota
	KindScalar
	KindMapping
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ScalarType tags a scalar so unit-carrying values (bytes, sizes, durations)
// survive the round trip through the external interpreter.
type ScalarType uint8

const (
	ScalarString ScalarType = iota
	ScalarInt
	ScalarFloat
	ScalarBool
	ScalarBytes
	ScalarDuration
	ScalarSize
)

func (s ScalarType) String() string {
	switch s {
	case ScalarString:
		return "string"
	case ScalarInt:
		return "int"
	case ScalarFloat:
		return "float"
	case ScalarBool:
		return "bool"
	case ScalarBytes:
		return "bytes"
	case ScalarDuration:
		return "duration"
	case ScalarSize:
		return "size"
	default:
		return fmt.Sprintf("ScalarType(%d)", uint8(s))
	}
}

// Value is a closed union over the envelope variants. Exactly the fields for
// the active Kind (and ScalarType) are meaningful; the rest stay zero.
type Value struct {
	Kind   Kind
	Scalar ScalarType

	Str   string
	Int   int64
	Float float64
	Bool  bool
	Bytes []byte
	Dur   time.Duration

	Map map[string]Value
	Seq []Value
}

// Null returns the absent-value envelope.
func Null() Value { return Value{Kind: KindNull} }

func String(s string) Value {
	return Value{Kind: KindScalar, Scalar: ScalarString, Str: s}
}

func Int(i int64) Value {
	return Value{Kind: KindScalar, Scalar: ScalarInt, Int: i}
}

func Float(f float64) Value {
	return Value{Kind: KindScalar, Scalar: ScalarFloat, Float: f}
}

func Bool(b bool) Value {
	return Value{Kind: KindScalar, Scalar: ScalarBool, Bool: b}
}

func Bytes(b []byte) Value {
	return Value{Kind: KindScalar, Scalar: ScalarBytes, Bytes: b}
}

// Duration carries a time quantity with its unit tag so the external side can
// render it as a primitive and the bridge can reconstruct it on return.
func Duration(d time.Duration) Value {
	return Value{Kind: KindScalar, Scalar: ScalarDuration, Dur: d}
}

// Size carries a byte count distinct from a plain integer.
func Size(n int64) Value {
	return Value{Kind: KindScalar, Scalar: ScalarSize, Int: n}
}

func Mapping(entries map[string]Value) Value {
	if entries == nil {
		entries = map[string]Value{}
	}
	return Value{Kind: KindMapping, Map: entries}
}

func Sequence(items ...Value) Value {
	return Value{Kind: KindSequence, Seq: items}
}

// UnrepresentableError reports a native value whose shape has no envelope
// mapping. The bridge surfaces it as a TypeMarshalError execution result.
type UnrepresentableError struct {
	TypeDescriptor string
}

func (e *UnrepresentableError) Error() string {
	return fmt.Sprintf("value of type %s has no envelope representation", e.TypeDescriptor)
}

// FromGo converts a native Go value into an envelope. Supported shapes:
// nil, string, bool, integer and float widths, []byte, time.Duration,
// map[string]any, and []any (recursively).
func FromGo(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint32:
		return Int(int64(x)), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case []byte:
		return Bytes(x), nil
	case time.Duration:
		return Duration(x), nil
	case map[string]any:
		entries := make(map[string]Value, len(x))
		for k, item := range x {
			converted, err := FromGo(item)
			if err != nil {
				return Value{}, err
			}
			entries[k] = converted
		}
		return Mapping(entries), nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			converted, err := FromGo(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = converted
		}
		return Sequence(items...), nil
	default:
		return Value{}, &UnrepresentableError{TypeDescriptor: fmt.Sprintf("%T", v)}
	}
}

// Equal reports deep equality. Mapping entries compare by key regardless of
// iteration order; sequences compare positionally.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindScalar:
		if v.Scalar != o.Scalar {
			return false
		}
		switch v.Scalar {
		case ScalarString:
			return v.Str == o.Str
		case ScalarInt, ScalarSize:
			return v.Int == o.Int
		case ScalarFloat:
			return v.Float == o.Float
		case ScalarBool:
			return v.Bool == o.Bool
		case ScalarBytes:
			return string(v.Bytes) == string(o.Bytes)
		case ScalarDuration:
			return v.Dur == o.Dur
		}
		return false
	case KindMapping:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, item := range v.Map {
			other, ok := o.Map[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
		return true
	case KindSequence:
		if len(v.Seq) != len(o.Seq) {
			return false
		}
		for i := range v.Seq {
			if !v.Seq[i].Equal(o.Seq[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders a compact diagnostic form. Mapping keys are sorted so the
// rendering is stable enough for error messages and test output.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindScalar:
		switch v.Scalar {
		case ScalarString:
			return fmt.Sprintf("%q", v.Str)
		case ScalarInt:
			return fmt.Sprintf("%d", v.Int)
		case ScalarSize:
			return fmt.Sprintf("%dB", v.Int)
		case ScalarFloat:
			return fmt.Sprintf("%g", v.Float)
		case ScalarBool:
			return fmt.Sprintf("%t", v.Bool)
		case ScalarBytes:
			return fmt.Sprintf("bytes(%d)", len(v.Bytes))
		case ScalarDuration:
			return v.Dur.String()
		}
		return "scalar(?)"
	case KindMapping:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", k, v.Map[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindSequence:
		parts := make([]string, len(v.Seq))
		for i, item := range v.Seq {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "invalid"
}
