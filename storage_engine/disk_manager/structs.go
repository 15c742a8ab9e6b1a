package diskmanager

import (
	"os"
	"sync"

	"nucleusdb/storage_engine/page"
)

// DiskManager owns the single backing file behind one buffer pool: raw
// ReadAt/WriteAt I/O plus the page-id allocator. It is the "external
// collaborator" the spec describes — the buffer pool is its only caller,
// and everything above the pool treats disk I/O as infallible.
type DiskManager struct {
	file *os.File

	nextPageID page.ID   // next never-allocated page id
	freeIDs    []page.ID // deallocated ids, reused LIFO before minting new ones

	mu sync.Mutex
}
