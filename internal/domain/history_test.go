package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory[string, int](3)
	for i, k := range []string{"a", "b", "c", "d", "e"} {
		h = h.Put(k, i)
	}

	require.Equal(t, 3, h.Len())
	require.Equal(t, []string{"c", "d", "e"}, h.Keys())
	require.False(t, h.Has("a"))
	v, ok := h.Get("e")
	require.True(t, ok)
	require.Equal(t, 4, v)
}

func TestHistoryPutExistingMovesToNewest(t *testing.T) {
	h := NewHistory[string, int](3).Put("a", 1).Put("b", 2).Put("c", 3)
	h = h.Put("a", 10).Put("d", 4)

	require.Equal(t, []string{"c", "a", "d"}, h.Keys())
	v, _ := h.Get("a")
	require.Equal(t, 10, v)
}

func TestHistoryValueSemantics(t *testing.T) {
	base := NewHistory[string, int](2).Put("a", 1)
	next := base.Put("b", 2).Put("c", 3)
	trimmed := next.Delete("b")

	require.Equal(t, []string{"a"}, base.Keys())
	require.Equal(t, []string{"b", "c"}, next.Keys())
	require.Equal(t, []string{"c"}, trimmed.Keys())
	require.Equal(t, trimmed, trimmed.Delete("missing"))
}

func TestHistoryZeroCapacityUsesDefault(t *testing.T) {
	h := NewHistory[int, int](0)
	require.Equal(t, DefaultHistoryCapacity, h.Capacity())

	var zero History[int, int]
	for i := range DefaultHistoryCapacity + 5 {
		zero = zero.Put(i, i)
	}
	require.Equal(t, DefaultHistoryCapacity, zero.Len())
	require.Equal(t, 5, zero.Keys()[0])
}

func TestHistoryJSON(t *testing.T) {
	var empty History[string, int]
	b, err := json.Marshal(empty)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(b))

	b, err = json.Marshal(NewHistory[string, int](2).Put("x", 1))
	require.NoError(t, err)
	require.JSONEq(t, `{"x":1}`, string(b))
}
