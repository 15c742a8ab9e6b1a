package hash

import "sync"

// bucket holds a capped set of key/value pairs plus the local depth the
// directory used to route entries into it. Each bucket guards its own
// contents with its own mutex, so Find and Remove calls on different
// buckets do not contend with each other; Insert also holds the table's
// directory lock for its whole run.
type bucket[K comparable, V any] struct {
	mu         sync.Mutex
	localDepth int
	items      map[K]V
}

func newBucket[K comparable, V any](localDepth int) *bucket[K, V] {
	return &bucket[K, V]{
		localDepth: localDepth,
		items:      make(map[K]V),
	}
}

func (b *bucket[K, V]) full(capacity int) bool {
	return len(b.items) >= capacity
}

func (b *bucket[K, V]) find(k K) (V, bool) {
	v, ok := b.items[k]
	return v, ok
}

func (b *bucket[K, V]) remove(k K) bool {
	if _, ok := b.items[k]; !ok {
		return false
	}
	delete(b.items, k)
	return true
}
