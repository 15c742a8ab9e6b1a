package bufferpool

import (
	"sync"

	"github.com/sirupsen/logrus"

	diskmanager "nucleusdb/storage_engine/disk_manager"
	"nucleusdb/storage_engine/hash"
	"nucleusdb/storage_engine/page"
	"nucleusdb/storage_engine/replacer"
)

// hashBucketSize caps how many page-id-to-frame-index entries a single
// extendible hash bucket holds before it splits.
const hashBucketSize = 4

// BufferPool manages a fixed set of frames backed by a single disk
// manager, with LRU eviction among unpinned frames. Its page table is an
// extendible hash keyed by page id rather than a plain map.
type BufferPool struct {
	mu sync.Mutex

	frames    []*page.Frame
	freeList  []int
	pageTable *hash.ExtendibleHash[page.ID, int]
	replacer  *replacer.LRUReplacer[int]
	disk      *diskmanager.DiskManager

	log *logrus.Logger
}

// Stats summarizes the pool's current occupancy.
type Stats struct {
	ResidentPages int
	PinnedPages   int
	DirtyPages    int
	Capacity      int
}
