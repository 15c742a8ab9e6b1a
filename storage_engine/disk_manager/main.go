// Package diskmanager implements the disk-manager contract the rest of the
// storage engine treats as an external collaborator (spec §6): fixed-size
// page read/write plus page-id allocation, backed by a single OS file.
package diskmanager

import (
	"fmt"
	"os"

	"nucleusdb/storage_engine/page"
)

// Open opens (creating if necessary) the backing file at path and recovers
// the allocator's high-water mark from the file's current size. Page id 0
// is never handed out by AllocatePage — callers that need the reserved
// header page address it directly.
func Open(path string) (*DiskManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("diskmanager: open %s: %w", path, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("diskmanager: stat %s: %w", path, err)
	}

	existingPages := page.ID(stat.Size() / page.Size)
	next := existingPages
	if next < 1 {
		next = 1 // page 0 is reserved for the header page
	}

	return &DiskManager{
		file:       f,
		nextPageID: next,
	}, nil
}

// ReadPage fills buf (must be exactly page.Size bytes) with the contents of
// page id. Pages past the current end of file read back as zeros — a brand
// new page that was allocated but never written.
func (dm *DiskManager) ReadPage(id page.ID, buf []byte) error {
	if len(buf) != page.Size {
		return fmt.Errorf("diskmanager: buffer must be %d bytes, got %d", page.Size, len(buf))
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := int64(id) * page.Size
	n, err := dm.file.ReadAt(buf, offset)
	if err != nil && n == 0 {
		// Short/empty read past EOF: treat as an unwritten page of zeros.
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// WritePage writes buf (must be exactly page.Size bytes) to page id.
func (dm *DiskManager) WritePage(id page.ID, buf []byte) error {
	if len(buf) != page.Size {
		return fmt.Errorf("diskmanager: buffer must be %d bytes, got %d", page.Size, len(buf))
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := int64(id) * page.Size
	if _, err := dm.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("diskmanager: write page %d: %w", id, err)
	}
	return nil
}

// AllocatePage returns a fresh page id, reusing a deallocated id before
// minting a new one.
func (dm *DiskManager) AllocatePage() page.ID {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if n := len(dm.freeIDs); n > 0 {
		id := dm.freeIDs[n-1]
		dm.freeIDs = dm.freeIDs[:n-1]
		return id
	}
	id := dm.nextPageID
	dm.nextPageID++
	return id
}

// DeallocatePage marks id as free; it may be reused by a later
// AllocatePage. The original bytes are left on disk untouched — the next
// allocation that reuses this id will overwrite them.
func (dm *DiskManager) DeallocatePage(id page.ID) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.freeIDs = append(dm.freeIDs, id)
}

// Sync flushes the backing file to stable storage.
func (dm *DiskManager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.file.Sync()
}

// Close syncs and closes the backing file.
func (dm *DiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if err := dm.file.Sync(); err != nil {
		dm.file.Close()
		return fmt.Errorf("diskmanager: sync on close: %w", err)
	}
	return dm.file.Close()
}
