package cache

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemo_GetPut(t *testing.T) {
	m, err := New[string](4)
	require.NoError(t, err)

	_, ok := m.Get("a")
	assert.False(t, ok)

	m.Put("a", "first")
	m.Put("a", "second")
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first", v, "entries are immutable once stored")

	s := m.Stats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
	assert.Equal(t, 1, s.Entries)
	assert.Equal(t, 4, s.Capacity)
}

func TestMemo_EvictsOldestInsertion(t *testing.T) {
	m, err := New[int](2)
	require.NoError(t, err)

	m.Put("a", 1)
	m.Put("b", 2)
	_, _ = m.Get("a") // reads do not refresh
	m.Put("c", 3)

	_, ok := m.Get("a")
	assert.False(t, ok, "a was inserted first and must be evicted")
	_, ok = m.Get("b")
	assert.True(t, ok)
	_, ok = m.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, m.Stats().Entries)
}

func TestMemo_NilIsAlwaysMissing(t *testing.T) {
	var m *Memo[int]
	m.Put("a", 1)
	_, ok := m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, Stats{}, m.Stats())
	m.Clear()
}

func TestNew_RejectsNonPositiveSize(t *testing.T) {
	_, err := New[int](0)
	assert.Error(t, err)
}

func TestMemo_Concurrent(t *testing.T) {
	m, err := New[int](DefaultSize)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				k := strconv.Itoa(j)
				m.Put(k, j)
				m.Get(k)
			}
		}(i)
	}
	wg.Wait()

	s := m.Stats()
	assert.Equal(t, 50, s.Entries)
	assert.Equal(t, uint64(400), s.Hits+s.Misses)
}

func TestKey(t *testing.T) {
	a := map[string]interface{}{"revenue": 1.0, "net_profit": 2.0}
	b := map[string]interface{}{"net_profit": 2.0, "revenue": 1.0}

	ka, err := Key(a, "4")
	require.NoError(t, err)
	kb, err := Key(b, "4")
	require.NoError(t, err)
	assert.Equal(t, ka, kb, "key order does not matter")

	kc, err := Key(a, "5")
	require.NoError(t, err)
	assert.NotEqual(t, ka, kc, "horizon is part of the key")
	assert.Len(t, ka, 32)
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", ContentHash(nil))
}
