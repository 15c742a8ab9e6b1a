package bufferpool

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	diskmanager "nucleusdb/storage_engine/disk_manager"
	"nucleusdb/storage_engine/page"
)

func newTestPool(t *testing.T, capacity int) *BufferPool {
	t.Helper()
	dm, err := diskmanager.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return New(capacity, dm, nil)
}

func TestNewPageIsPinnedAndZeroed(t *testing.T) {
	bp := newTestPool(t, 4)

	f, err := bp.NewPage()
	require.NoError(t, err)
	require.Equal(t, int32(1), f.PinCount)
	for _, b := range f.Data {
		require.Equal(t, byte(0), b)
	}
}

func TestFetchPageReusesResidentFrameOnHit(t *testing.T) {
	bp := newTestPool(t, 4)

	f, err := bp.NewPage()
	require.NoError(t, err)
	id := f.ID
	f.Data[0] = 42
	require.NoError(t, bp.UnpinPage(id, true))

	fetched, err := bp.FetchPage(id)
	require.NoError(t, err)
	require.Equal(t, byte(42), fetched.Data[0])
	require.Equal(t, int32(1), fetched.PinCount)
}

func TestUnpinThenFetchAgainIncrementsPinCount(t *testing.T) {
	bp := newTestPool(t, 4)

	f, err := bp.NewPage()
	require.NoError(t, err)
	id := f.ID
	require.NoError(t, bp.UnpinPage(id, false))

	_, err = bp.FetchPage(id)
	require.NoError(t, err)
	_, err = bp.FetchPage(id)
	require.NoError(t, err)

	idx, ok := bp.pageTable.Find(id)
	require.True(t, ok)
	require.Equal(t, int32(2), bp.frames[idx].PinCount)
}

func TestNoAvailableFrameWhenAllPinned(t *testing.T) {
	bp := newTestPool(t, 2)

	_, err := bp.NewPage()
	require.NoError(t, err)
	_, err = bp.NewPage()
	require.NoError(t, err)

	_, err = bp.NewPage()
	require.ErrorIs(t, err, ErrNoAvailableFrame)
}

func TestEvictionWritesBackDirtyFrame(t *testing.T) {
	bp := newTestPool(t, 1)

	f, err := bp.NewPage()
	require.NoError(t, err)
	first := f.ID
	f.Data[0] = 7
	require.NoError(t, bp.UnpinPage(first, true))

	// Forces eviction of the only frame.
	second, err := bp.NewPage()
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(second.ID, false))

	refetched, err := bp.FetchPage(first)
	require.NoError(t, err)
	require.Equal(t, byte(7), refetched.Data[0])
}

func TestUnpinPageNotResidentReturnsError(t *testing.T) {
	bp := newTestPool(t, 4)
	err := bp.UnpinPage(page.ID(999), false)
	require.ErrorIs(t, err, ErrPageNotFound)
}

func TestDeletePageRefusesWhilePinned(t *testing.T) {
	bp := newTestPool(t, 4)
	f, err := bp.NewPage()
	require.NoError(t, err)

	err = bp.DeletePage(f.ID)
	require.ErrorIs(t, err, ErrPagePinned)
}

func TestDeletePageFreesFrameForReuse(t *testing.T) {
	bp := newTestPool(t, 1)
	f, err := bp.NewPage()
	require.NoError(t, err)
	id := f.ID
	require.NoError(t, bp.UnpinPage(id, false))
	require.NoError(t, bp.DeletePage(id))

	// The deleted page is no longer resident.
	err = bp.FlushPage(id)
	require.ErrorIs(t, err, ErrPageNotFound)

	// The freed frame must be usable again without hitting ErrNoAvailableFrame.
	_, err = bp.NewPage()
	require.NoError(t, err)
}

func TestFlushPageDoesNotClearDirtyBit(t *testing.T) {
	bp := newTestPool(t, 4)
	f, err := bp.NewPage()
	require.NoError(t, err)
	id := f.ID
	require.NoError(t, bp.UnpinPage(id, true))

	require.NoError(t, bp.FlushPage(id))

	idx, ok := bp.pageTable.Find(id)
	require.True(t, ok)
	require.True(t, bp.frames[idx].IsDirty, "FlushPage must not clear the dirty bit")
}

func TestStatsReflectsPinnedAndDirtyPages(t *testing.T) {
	bp := newTestPool(t, 4)
	f, err := bp.NewPage()
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(f.ID, true))

	stats := bp.Stats()
	require.Equal(t, 1, stats.ResidentPages)
	require.Equal(t, 0, stats.PinnedPages)
	require.Equal(t, 1, stats.DirtyPages)
	require.Equal(t, 4, stats.Capacity)
}
