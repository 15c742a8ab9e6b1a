package bufferpool

import "errors"

var (
	// ErrNoAvailableFrame is returned when every frame is pinned and the
	// replacer has nothing to evict.
	ErrNoAvailableFrame = errors.New("bufferpool: no available frame to evict")

	// ErrPageNotFound is returned by operations that require a page to
	// already be resident in the pool.
	ErrPageNotFound = errors.New("bufferpool: page not resident in pool")

	// ErrPagePinned is returned when DeletePage is asked to evict a page
	// that is still pinned by some caller.
	ErrPagePinned = errors.New("bufferpool: page is still pinned")

	// ErrPageNotPinned is returned by UnpinPage when id's frame is already
	// at pin count 0 — a double unpin.
	ErrPageNotPinned = errors.New("bufferpool: page is not pinned")
)
