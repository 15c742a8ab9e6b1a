package bufferpool

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	diskmanager "nucleusdb/storage_engine/disk_manager"
	"nucleusdb/storage_engine/hash"
	"nucleusdb/storage_engine/page"
	"nucleusdb/storage_engine/replacer"
)

/*
This file is the main file of the bufferpool.
The buffer pool works on LRU based caching: pages come from the disk
manager on a miss, get pinned while in use, and get written back to disk
when a dirty frame is evicted or explicitly flushed.

Pages are identified by page.ID across the whole pool.
*/

// New creates a buffer pool with the given number of frames. log may be
// nil, in which case logrus.StandardLogger() is used.
func New(capacity int, disk *diskmanager.DiskManager, log *logrus.Logger) *BufferPool {
	if log == nil {
		log = logrus.StandardLogger()
	}

	frames := make([]*page.Frame, capacity)
	freeList := make([]int, capacity)
	for i := range frames {
		frames[i] = page.NewFrame()
		freeList[i] = i
	}

	return &BufferPool{
		frames:    frames,
		freeList:  freeList,
		pageTable: hash.New[page.ID, int](hashBucketSize, func(id page.ID) uint64 { return hash.HashInt32(int32(id)) }),
		replacer:  replacer.NewLRUReplacer[int](),
		disk:      disk,
		log:       log,
	}
}

// FetchPage retrieves a page from the buffer pool, loading it from disk on
// a miss. The returned frame has its pin count incremented; the caller
// must UnpinPage it exactly once.
func (bp *BufferPool) FetchPage(id page.ID) (*page.Frame, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if idx, ok := bp.pageTable.Find(id); ok {
		f := bp.frames[idx]
		f.Lock()
		if f.PinCount == 0 {
			bp.replacer.Erase(idx)
		}
		f.PinCount++
		pinCount := f.PinCount
		f.Unlock()
		bp.log.WithFields(logrus.Fields{"page": id, "pinCount": pinCount}).Debug("bufferpool: fetch hit")
		return f, nil
	}

	bp.log.WithField("page", id).Debug("bufferpool: fetch miss, loading from disk")

	idx, ok := bp.victimFrame()
	if !ok {
		return nil, ErrNoAvailableFrame
	}
	f := bp.frames[idx]
	if err := bp.evict(f); err != nil {
		return nil, fmt.Errorf("bufferpool: fetch page %d: %w", id, err)
	}

	if err := bp.disk.ReadPage(id, f.Data); err != nil {
		bp.freeList = append(bp.freeList, idx)
		return nil, fmt.Errorf("bufferpool: fetch page %d: %w", id, err)
	}
	f.ID = id
	f.PinCount = 1
	bp.pageTable.Insert(id, idx)
	return f, nil
}

// NewPage allocates a fresh page id on disk and returns a pinned, zeroed
// frame for it. The caller must UnpinPage it exactly once.
func (bp *BufferPool) NewPage() (*page.Frame, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	idx, ok := bp.victimFrame()
	if !ok {
		return nil, ErrNoAvailableFrame
	}
	f := bp.frames[idx]
	if err := bp.evict(f); err != nil {
		return nil, fmt.Errorf("bufferpool: new page: %w", err)
	}

	id := bp.disk.AllocatePage()
	f.ID = id
	f.PinCount = 1
	bp.pageTable.Insert(id, idx)
	bp.log.WithField("page", id).Debug("bufferpool: new page")
	return f, nil
}

// UnpinPage decrements id's pin count. isDirty, when true, marks the
// frame dirty; it is only ever OR'd in, never used to clear a prior dirty
// mark left by an earlier, still-unflushed mutation.
func (bp *BufferPool) UnpinPage(id page.ID, isDirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	idx, ok := bp.pageTable.Find(id)
	if !ok {
		return fmt.Errorf("bufferpool: unpin page %d: %w", id, ErrPageNotFound)
	}
	f := bp.frames[idx]
	f.Lock()
	defer f.Unlock()

	if f.PinCount <= 0 {
		return fmt.Errorf("bufferpool: unpin page %d: %w", id, ErrPageNotPinned)
	}
	if isDirty {
		f.IsDirty = true
	}
	f.PinCount--
	if f.PinCount == 0 {
		bp.replacer.Insert(idx)
	}
	return nil
}

// FlushPage writes id's current bytes to disk if it is resident. It does
// not clear the dirty bit — only eviction resets IsDirty, so a page
// flushed while still pinned for further writes keeps reporting dirty
// until it is actually evicted.
func (bp *BufferPool) FlushPage(id page.ID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	idx, ok := bp.pageTable.Find(id)
	if !ok {
		return fmt.Errorf("bufferpool: flush page %d: %w", id, ErrPageNotFound)
	}
	f := bp.frames[idx]
	f.RLock()
	defer f.RUnlock()

	bp.log.WithField("page", id).Debug("bufferpool: flush")
	if err := bp.disk.WritePage(f.ID, f.Data); err != nil {
		return fmt.Errorf("bufferpool: flush page %d: %w", id, err)
	}
	return nil
}

// FlushAllPages writes every resident page's bytes to disk, dirty or not.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	resident := bp.capacityMinusFree()
	bp.log.WithFields(logrus.Fields{
		"residentFrames": resident,
		"residentBytes":  humanize.Bytes(uint64(resident) * uint64(page.Size)),
	}).Debug("bufferpool: flush all pages")
	for _, f := range bp.frames {
		f.RLock()
		id := f.ID
		f.RUnlock()
		if id == page.Invalid {
			continue
		}
		if err := bp.disk.WritePage(f.ID, f.Data); err != nil {
			return fmt.Errorf("bufferpool: flush all, page %d: %w", f.ID, err)
		}
	}
	return nil
}

// DeletePage evicts id from the pool (refusing while it is pinned) and
// frees its disk-side id. Deallocation on disk happens regardless of
// whether id was resident in the pool.
func (bp *BufferPool) DeletePage(id page.ID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if idx, ok := bp.pageTable.Find(id); ok {
		f := bp.frames[idx]
		f.Lock()
		pinned := f.PinCount != 0
		if !pinned {
			f.Reset()
		}
		f.Unlock()
		if pinned {
			return fmt.Errorf("bufferpool: delete page %d: %w", id, ErrPagePinned)
		}
		bp.pageTable.Remove(id)
		bp.replacer.Erase(idx)
		bp.freeList = append(bp.freeList, idx)
	}

	bp.disk.DeallocatePage(id)
	bp.log.WithField("page", id).Debug("bufferpool: delete page")
	return nil
}

// victimFrame returns a frame index available for reuse, preferring the
// free list over evicting an unpinned resident frame.
func (bp *BufferPool) victimFrame() (int, bool) {
	if n := len(bp.freeList); n > 0 {
		idx := bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return idx, true
	}
	return bp.replacer.Victim()
}

// evict prepares a resident frame for reassignment: writes it back if
// dirty and removes it from the page table. A frame already on the free
// list (ID == Invalid) needs no work.
func (bp *BufferPool) evict(f *page.Frame) error {
	f.Lock()
	defer f.Unlock()

	if f.ID == page.Invalid {
		return nil
	}
	if f.IsDirty {
		if err := bp.disk.WritePage(f.ID, f.Data); err != nil {
			return fmt.Errorf("write back page %d: %w", f.ID, err)
		}
	}
	bp.pageTable.Remove(f.ID)
	bp.log.WithField("page", f.ID).Debug("bufferpool: evict")
	f.Reset()
	return nil
}
