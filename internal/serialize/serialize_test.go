// ABOUTME: Tests for converting tool results into JSON-safe values.
// ABOUTME: Covers document identifiers, timestamps, numeric arrays and unsupported values.

package serialize

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestValuePrimitives(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"string", "x", "x"},
		{"bool", true, true},
		{"int", 3, int64(3)},
		{"int32", int32(-4), int64(-4)},
		{"uint16", uint16(9), uint64(9)},
		{"float", 1.5, 1.5},
		{"float32", float32(0.5), 0.5},
		{"json number", json.Number("12"), json.Number("12")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Value(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValueDocumentStoreTypes(t *testing.T) {
	oid := primitive.NewObjectID()
	when := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	doc := bson.D{
		{Key: "_id", Value: oid},
		{Key: "at", Value: primitive.NewDateTimeFromTime(when)},
		{Key: "tags", Value: bson.A{"a", int32(2)}},
		{Key: "nested", Value: bson.M{"ok": true, "none": primitive.Null{}}},
	}

	got, err := Value(doc)
	require.NoError(t, err)

	m, ok := got.(map[string]any)
	require.True(t, ok, "expected map, got %T", got)
	assert.Equal(t, oid.Hex(), m["_id"])
	assert.Equal(t, "2024-03-01T12:30:00Z", m["at"])
	assert.Equal(t, []any{"a", int64(2)}, m["tags"])
	assert.Equal(t, map[string]any{"ok": true, "none": nil}, m["nested"])
}

func TestValueTime(t *testing.T) {
	when := time.Date(2023, 7, 4, 8, 0, 0, 0, time.UTC)

	got, err := Value(when)
	require.NoError(t, err)
	assert.Equal(t, "2023-07-04T08:00:00Z", got)

	var nilTime *time.Time
	got, err = Value(nilTime)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestValueNumericArrays(t *testing.T) {
	got, err := Value([]float64{1, 2.5})
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.5}, got)

	got, err = Value([][]int{{1, 2}, {3}})
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{int64(1), int64(2)}, []any{int64(3)}}, got)

	got, err = Value([3]int8{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, got)

	var empty []string
	got, err = Value(empty)
	require.NoError(t, err)
	assert.Equal(t, []any{}, got)
}

func TestValueTypedMapsAndStructs(t *testing.T) {
	got, err := Value(map[int]string{1: "one"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"1": "one"}, got)

	type reading struct {
		Sensor string  `json:"sensor"`
		Value  float64 `json:"value"`
	}
	got, err = Value(reading{Sensor: "s1", Value: 4.2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sensor": "s1", "value": json.Number("4.2")}, got)

	got, err = Value(&reading{Sensor: "s2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sensor": "s2", "value": json.Number("0")}, got)
}

func TestValueStructKeepsLargeIntegers(t *testing.T) {
	type laneCount struct {
		Lane  string `json:"lane"`
		Count int64  `json:"count"`
	}
	got, err := Value(laneCount{Lane: ":l1", Count: 9007199254740993})
	require.NoError(t, err)

	m, ok := got.(map[string]any)
	require.True(t, ok)
	n, ok := m["count"].(json.Number)
	require.True(t, ok, "count should stay a json.Number, got %T", m["count"])
	i, err := n.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), i)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"count":9007199254740993`)
}

func TestValueUnsupported(t *testing.T) {
	cases := map[string]any{
		"nan":          math.NaN(),
		"inf":          math.Inf(1),
		"channel":      make(chan int),
		"func":         func() {},
		"complex":      complex(1, 2),
		"nested nan":   map[string]any{"data": []any{1, math.NaN()}},
		"bad raw json": json.RawMessage(`{`),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Value(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSerialization))
		})
	}
}

func TestValueErrorIncludesPath(t *testing.T) {
	_, err := Value(map[string]any{"data": []any{1, math.Inf(-1)}})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "$.data[1]"), "got %v", err)
}

func TestValueDepthLimit(t *testing.T) {
	var v any = "leaf"
	for range maxDepth + 5 {
		v = []any{v}
	}
	_, err := Value(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nesting too deep")
}
