package bplustree

import "errors"

// ErrIteratorExhausted is returned by Iterator.Next once the iterator has
// already passed the last entry.
var ErrIteratorExhausted = errors.New("bplustree: iterator exhausted")
