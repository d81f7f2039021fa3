// Package cache provides a bounded in-memory memo for analysis results.
package cache

import (
	"crypto/md5"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"finsight/pkg/core/utils"
)

// DefaultSize is the default maximum number of entries.
const DefaultSize = 100

// Stats reports memo usage.
type Stats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity"`
}

// Memo is a fixed-size, content-addressed result cache. Reads do not refresh
// an entry, so the oldest insertion is evicted first. A nil *Memo is a valid,
// always-missing cache.
type Memo[V any] struct {
	mu       sync.Mutex
	store    *lru.Cache[string, V]
	capacity int
	hits     uint64
	misses   uint64
}

// New creates a memo holding at most size entries.
func New[V any](size int) (*Memo[V], error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", size)
	}
	store, err := lru.New[string, V](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &Memo[V]{store: store, capacity: size}, nil
}

// Get returns the cached value for key.
func (m *Memo[V]) Get(key string) (V, bool) {
	var zero V
	if m == nil {
		return zero, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.store.Peek(key)
	if !ok {
		m.misses++
		return zero, false
	}
	m.hits++
	return v, true
}

// Put stores v under key. Existing entries are immutable and kept as is.
func (m *Memo[V]) Put(key string, v V) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store.Contains(key) {
		return
	}
	m.store.Add(key, v)
}

// Stats returns a snapshot of the counters.
func (m *Memo[V]) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Hits: m.hits, Misses: m.misses, Entries: m.store.Len(), Capacity: m.capacity}
}

// Clear removes every entry. Counters are kept.
func (m *Memo[V]) Clear() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store.Purge()
}

// ContentHash returns the MD5 hash of content.
func ContentHash(content []byte) string {
	return fmt.Sprintf("%x", md5.Sum(content))
}

// Key hashes the sorted-key JSON of payload together with extra qualifiers
// such as the trend horizon.
func Key(payload interface{}, extra ...string) (string, error) {
	b, err := utils.CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	if len(extra) > 0 {
		b = append(b, '|')
		b = append(b, strings.Join(extra, "|")...)
	}
	return ContentHash(b), nil
}
