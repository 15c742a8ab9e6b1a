package header

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"nucleusdb/storage_engine/bufferpool"
	diskmanager "nucleusdb/storage_engine/disk_manager"
	"nucleusdb/storage_engine/page"
)

func newTestPool(t *testing.T) *bufferpool.BufferPool {
	t.Helper()
	dm, err := diskmanager.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return bufferpool.New(8, dm, nil)
}

func TestFreshHeaderHasNoRecords(t *testing.T) {
	bp := newTestPool(t)
	h, err := Load(bp)
	require.NoError(t, err)

	_, ok := h.GetRootID("by_id")
	require.False(t, ok)
}

func TestInsertThenGetRootID(t *testing.T) {
	bp := newTestPool(t)
	h, err := Load(bp)
	require.NoError(t, err)

	require.True(t, h.InsertRecord("by_id", page.ID(5)))
	root, ok := h.GetRootID("by_id")
	require.True(t, ok)
	require.Equal(t, page.ID(5), root)
}

func TestInsertRecordRefusesDuplicateName(t *testing.T) {
	bp := newTestPool(t)
	h, err := Load(bp)
	require.NoError(t, err)

	require.True(t, h.InsertRecord("by_id", page.ID(5)))
	require.False(t, h.InsertRecord("by_id", page.ID(9)))

	root, _ := h.GetRootID("by_id")
	require.Equal(t, page.ID(5), root)
}

func TestUpdateRecordRequiresExistingEntry(t *testing.T) {
	bp := newTestPool(t)
	h, err := Load(bp)
	require.NoError(t, err)

	require.False(t, h.UpdateRecord("by_id", page.ID(5)))

	require.True(t, h.InsertRecord("by_id", page.ID(5)))
	require.True(t, h.UpdateRecord("by_id", page.ID(6)))

	root, _ := h.GetRootID("by_id")
	require.Equal(t, page.ID(6), root)
}

func TestDeleteRecord(t *testing.T) {
	bp := newTestPool(t)
	h, err := Load(bp)
	require.NoError(t, err)

	require.True(t, h.InsertRecord("by_id", page.ID(5)))
	require.True(t, h.DeleteRecord("by_id"))
	require.False(t, h.DeleteRecord("by_id"))

	_, ok := h.GetRootID("by_id")
	require.False(t, ok)
}

func TestFlushPersistsAcrossReload(t *testing.T) {
	bp := newTestPool(t)
	h, err := Load(bp)
	require.NoError(t, err)
	require.True(t, h.InsertRecord("by_id", page.ID(5)))
	require.NoError(t, h.Flush(bp))

	reloaded, err := Load(bp)
	require.NoError(t, err)
	root, ok := reloaded.GetRootID("by_id")
	require.True(t, ok)
	require.Equal(t, page.ID(5), root)
}

func TestMultipleIndexRecords(t *testing.T) {
	bp := newTestPool(t)
	h, err := Load(bp)
	require.NoError(t, err)

	require.True(t, h.InsertRecord("by_id", page.ID(1)))
	require.True(t, h.InsertRecord("by_name", page.ID(2)))

	root, ok := h.GetRootID("by_id")
	require.True(t, ok)
	require.Equal(t, page.ID(1), root)

	root, ok = h.GetRootID("by_name")
	require.True(t, ok)
	require.Equal(t, page.ID(2), root)
}
