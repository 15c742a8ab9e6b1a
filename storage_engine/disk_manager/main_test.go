package diskmanager

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"nucleusdb/storage_engine/page"
)

func newTestManager(t *testing.T) *DiskManager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	dm, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { dm.Close() })
	return dm
}

func TestAllocatePageSkipsHeaderPage(t *testing.T) {
	dm := newTestManager(t)
	id := dm.AllocatePage()
	if id == 0 {
		t.Fatalf("AllocatePage handed out the reserved header page id 0")
	}
}

func TestAllocatePageMonotonic(t *testing.T) {
	dm := newTestManager(t)
	first := dm.AllocatePage()
	second := dm.AllocatePage()
	if second <= first {
		t.Fatalf("expected monotonically increasing ids, got %d then %d", first, second)
	}
}

func TestDeallocatePageReusesID(t *testing.T) {
	dm := newTestManager(t)
	first := dm.AllocatePage()
	dm.DeallocatePage(first)
	reused := dm.AllocatePage()
	if reused != first {
		t.Fatalf("expected DeallocatePage id %d to be reused, got %d", first, reused)
	}
}

func TestDeallocatePageLIFO(t *testing.T) {
	dm := newTestManager(t)
	a := dm.AllocatePage()
	b := dm.AllocatePage()
	dm.DeallocatePage(a)
	dm.DeallocatePage(b)

	if got := dm.AllocatePage(); got != b {
		t.Fatalf("expected LIFO reuse to hand back %d first, got %d", b, got)
	}
	if got := dm.AllocatePage(); got != a {
		t.Fatalf("expected LIFO reuse to hand back %d second, got %d", a, got)
	}
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	dm := newTestManager(t)
	id := dm.AllocatePage()

	want := make([]byte, page.Size)
	for i := range want {
		want[i] = byte(i % 251)
	}
	if err := dm.WritePage(id, want); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got := make([]byte, page.Size)
	if err := dm.ReadPage(id, got); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(want, got) {
		t.Fatalf("read back different bytes than written")
	}
}

func TestReadUnwrittenPageIsZeroed(t *testing.T) {
	dm := newTestManager(t)
	id := dm.AllocatePage()

	buf := make([]byte, page.Size)
	for i := range buf {
		buf[i] = 0xFF
	}
	if err := dm.ReadPage(id, buf); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("expected zeroed page for unwritten id, byte %d = %x", i, b)
		}
	}
}

func TestReadPageWrongSizeBuffer(t *testing.T) {
	dm := newTestManager(t)
	id := dm.AllocatePage()
	if err := dm.ReadPage(id, make([]byte, 10)); err == nil {
		t.Fatalf("expected error for undersized buffer")
	}
}

func TestWritePageWrongSizeBuffer(t *testing.T) {
	dm := newTestManager(t)
	id := dm.AllocatePage()
	if err := dm.WritePage(id, make([]byte, 10)); err == nil {
		t.Fatalf("expected error for undersized buffer")
	}
}

func TestOpenRecoversAllocatorFromExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	dm, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var last page.ID
	for i := 0; i < 5; i++ {
		last = dm.AllocatePage()
		if err := dm.WritePage(last, make([]byte, page.Size)); err != nil {
			t.Fatalf("WritePage: %v", err)
		}
	}
	if err := dm.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	next := reopened.AllocatePage()
	if next <= last {
		t.Fatalf("expected reopened manager to continue past %d, got %d", last, next)
	}
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.db")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	dm, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dm.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected backing file to exist: %v", err)
	}
}
