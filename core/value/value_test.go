package value

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDurationSurvivesRoundTrip checks that the unit tag reconstructs a
// native duration instead of collapsing it to a plain string.
func TestDurationSurvivesRoundTrip(t *testing.T) {
	original := Duration(1500 * time.Millisecond)

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"duration"`)
	assert.Contains(t, string(data), `"1.5s"`)

	var decoded Value
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ScalarDuration, decoded.Scalar)
	assert.Equal(t, 1500*time.Millisecond, decoded.Dur)
}

func TestBytesEncodeAsBase64(t *testing.T) {
	data, err := json.Marshal(Bytes([]byte{0xDE, 0xAD}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"scalar","type":"bytes","value":"3q0="}`, string(data))

	var decoded Value
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []byte{0xDE, 0xAD}, decoded.Bytes)
}

func TestSizeIsDistinctFromInt(t *testing.T) {
	assert.False(t, Size(42).Equal(Int(42)))

	data, err := json.Marshal(Size(4096))
	require.NoError(t, err)

	var decoded Value
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Equal(Size(4096)))
}

func TestNestedMappingRoundTrip(t *testing.T) {
	original := Mapping(map[string]Value{
		"name":  String("backup"),
		"count": Int(3),
		"tags":  Sequence(String("nightly"), String("prod")),
		"inner": Mapping(map[string]Value{"ok": Bool(true)}),
		"none":  Null(),
	})

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Value
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, original.Equal(decoded), "decoded: %s", decoded)
}

func TestFromGoConvertsNativeShapes(t *testing.T) {
	v, err := FromGo(map[string]any{
		"items": []any{int64(1), "two", true},
		"wait":  2 * time.Second,
	})
	require.NoError(t, err)

	want := Mapping(map[string]Value{
		"items": Sequence(Int(1), String("two"), Bool(true)),
		"wait":  Duration(2 * time.Second),
	})
	assert.True(t, want.Equal(v), "got %s", v)
}

func TestFromGoRejectsUnrepresentableShape(t *testing.T) {
	_, err := FromGo(make(chan int))

	var unrep *UnrepresentableError
	require.ErrorAs(t, err, &unrep)
	assert.Equal(t, "chan int", unrep.TypeDescriptor)
}

func TestUnknownEnvelopeKindRejected(t *testing.T) {
	var decoded Value
	err := json.Unmarshal([]byte(`{"kind":"tuple"}`), &decoded)

	var unrep *UnrepresentableError
	require.ErrorAs(t, err, &unrep)
}

func TestMappingEqualityIgnoresKeyOrder(t *testing.T) {
	a := Mapping(map[string]Value{"x": Int(1), "y": Int(2)})
	b := Mapping(map[string]Value{"y": Int(2), "x": Int(1)})
	assert.True(t, a.Equal(b))
}

func TestSequenceEqualityIsOrdered(t *testing.T) {
	a := Sequence(Int(1), Int(2))
	b := Sequence(Int(2), Int(1))
	assert.False(t, a.Equal(b))
}
