package datastruct

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLeastRecentlyUsedBuffer(t *testing.T) {
	lru := NewLeastRecentlyUsedBuffer(3)
	for i := 0; i < 3; i++ {
		alreadyPresent, evicted := lru.Add(strconv.Itoa(i))
		require.False(t, alreadyPresent)
		require.Empty(t, evicted)
		require.True(t, lru.Contains(strconv.Itoa(i)))
	}
	require.Equal(t, 3, lru.Len())

	// re-adding present elements refreshes recency without eviction
	for i := 0; i < 3; i++ {
		alreadyPresent, evicted := lru.Add(strconv.Itoa(i))
		require.True(t, alreadyPresent)
		require.Empty(t, evicted)
	}
	require.Equal(t, 3, lru.Len())

	// adding beyond capacity evicts from the oldest (0) onward
	for i := 3; i < 6; i++ {
		alreadyPresent, evicted := lru.Add(strconv.Itoa(i))
		require.False(t, alreadyPresent)
		require.Equal(t, strconv.Itoa(i-3), evicted)
	}
	require.Equal(t, 3, lru.Len())

	// non-sequential eviction order: buffer holds 3, 4, 5
	for _, step := range []struct {
		add, evicted string
	}{
		{"2", "3"},
		{"5", ""},
		{"3", "4"},
		{"8", "2"},
	} {
		_, evicted := lru.Add(step.add)
		require.Equal(t, step.evicted, evicted, "adding %s", step.add)
	}
	for _, elem := range []string{"5", "3", "8"} {
		require.True(t, lru.Contains(elem))
	}

	lru.Remove("5")
	require.False(t, lru.Contains("5"))
	require.Equal(t, 2, lru.Len())
}

func TestRingBuffer(t *testing.T) {
	r := NewRingBuffer(3)
	require.Empty(t, r.GetAll())

	r.Push("a")
	r.Push("b")
	require.Equal(t, []string{"a", "b"}, r.GetAll())

	// wrap around: the oldest element is overwritten
	r.Push("c")
	r.Push("d")
	require.Len(t, r.GetAll(), 3)
	require.Contains(t, r.GetAll(), "d")
	require.NotContains(t, r.GetAll(), "a")

	// early-terminating reverse iteration sees the latest element first
	var first string
	r.IterateReverse(func(elem string) bool {
		first = elem
		return false
	})
	require.Equal(t, "d", first)

	r.Clear()
	require.Empty(t, r.GetAll())
}
