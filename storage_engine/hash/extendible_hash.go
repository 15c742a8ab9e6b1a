// Package hash implements an in-memory extendible hash table: a directory
// of pointers to fixed-capacity buckets, doubling the directory and
// splitting a bucket on overflow instead of rehashing the whole table.
//
// The buffer pool uses an instance of this keyed by page id as its page
// table; the type is exported standalone so that it can be used and tested
// on its own. The B+ tree does not use it.
package hash

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// HashFunc computes the full hash of a key. The directory index is this
// value masked down to the current global depth's low bits.
type HashFunc[K any] func(K) uint64

// HashInt32 hashes a 32-bit key (page ids, most notably) with xxhash,
// replacing the original implementation's std::hash<K> for integer keys.
func HashInt32(k int32) uint64 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(k))
	return xxhash.Sum64(buf[:])
}

// ExtendibleHash is a generic extendible hash table. K must be comparable;
// the caller supplies the hash function since Go generics cannot derive a
// bit pattern from an arbitrary comparable type the way C++'s std::hash
// specializations can.
type ExtendibleHash[K comparable, V any] struct {
	mu sync.RWMutex

	hashFunc    HashFunc[K]
	bucketSize  int
	globalDepth int
	numBuckets  int
	directory   []*bucket[K, V]
}

// New returns an extendible hash whose buckets hold up to bucketSize
// entries before splitting, starting at global depth 0 (a single bucket).
func New[K comparable, V any](bucketSize int, hashFunc HashFunc[K]) *ExtendibleHash[K, V] {
	if bucketSize < 1 {
		bucketSize = 1
	}
	return &ExtendibleHash[K, V]{
		hashFunc:   hashFunc,
		bucketSize: bucketSize,
		numBuckets: 1,
		directory:  []*bucket[K, V]{newBucket[K, V](0)},
	}
}

func (eh *ExtendibleHash[K, V]) indexFor(k K) int {
	mask := uint64(len(eh.directory) - 1)
	return int(eh.hashFunc(k) & mask)
}

// Find returns the value stored for k, if any.
func (eh *ExtendibleHash[K, V]) Find(k K) (V, bool) {
	eh.mu.RLock()
	b := eh.directory[eh.indexFor(k)]
	eh.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.find(k)
}

// Remove deletes k, reporting whether it was present.
func (eh *ExtendibleHash[K, V]) Remove(k K) bool {
	eh.mu.RLock()
	b := eh.directory[eh.indexFor(k)]
	eh.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remove(k)
}

// Insert adds or overwrites the value for k, splitting buckets and
// doubling the directory as many times as a single overflowing insert
// requires.
func (eh *ExtendibleHash[K, V]) Insert(k K, v V) {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	for {
		idx := eh.indexFor(k)
		b := eh.directory[idx]

		b.mu.Lock()
		if _, exists := b.find(k); exists || !b.full(eh.bucketSize) {
			b.items[k] = v
			b.mu.Unlock()
			return
		}

		// Bucket is full and k is a new key: split it.
		if b.localDepth == eh.globalDepth {
			eh.directory = append(eh.directory, eh.directory...)
			eh.globalDepth++
		}

		newLocalDepth := b.localDepth + 1
		sibling := newBucket[K, V](newLocalDepth)
		b.localDepth = newLocalDepth
		eh.numBuckets++

		splitBit := 1 << uint(newLocalDepth-1)
		for i, cur := range eh.directory {
			if cur == b && i&splitBit != 0 {
				eh.directory[i] = sibling
			}
		}

		moved := b.items
		b.items = make(map[K]V)
		b.mu.Unlock()

		for mk, mv := range moved {
			target := eh.directory[eh.indexFor(mk)]
			target.mu.Lock()
			target.items[mk] = mv
			target.mu.Unlock()
		}
		// Retry: the split may not have separated k from the bucket it
		// came from, in which case the next pass splits again.
	}
}

// GetGlobalDepth returns the number of bits of the hash currently used to
// index the directory.
func (eh *ExtendibleHash[K, V]) GetGlobalDepth() int {
	eh.mu.RLock()
	defer eh.mu.RUnlock()
	return eh.globalDepth
}

// GetLocalDepth returns the local depth of the bucket k would hash to.
func (eh *ExtendibleHash[K, V]) GetLocalDepth(k K) int {
	eh.mu.RLock()
	defer eh.mu.RUnlock()
	return eh.directory[eh.indexFor(k)].localDepth
}

// GetNumBuckets returns the number of distinct buckets currently
// allocated (directory slots may alias the same bucket).
func (eh *ExtendibleHash[K, V]) GetNumBuckets() int {
	eh.mu.RLock()
	defer eh.mu.RUnlock()
	return eh.numBuckets
}
