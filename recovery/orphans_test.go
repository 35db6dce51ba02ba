package recovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/majortom/opossum/pkg/opossum"
	"github.com/stretchr/testify/require"
)

func TestListOrphanFilesReportsFilesAboveLedger(t *testing.T) {
	root := t.TempDir()
	cfg, err := opossum.NewStoreConfig(root, "store")
	require.NoError(t, err)
	store, err := opossum.NewStore(cfg)
	require.NoError(t, err)

	_, err = store.Append(context.Background(), []opossum.NewEvent{
		opossum.NewNewEvent("A", []byte(`{}`)),
	}, opossum.AppendCondition{})
	require.NoError(t, err)

	paths := opossum.ResolveStorePaths(root, "store")
	orphanFile := filepath.Join(paths.EventsDir, "0000000002.json")
	require.NoError(t, os.WriteFile(orphanFile, []byte(`{"position":2}`), 0o644))

	orphans, err := ListOrphanFiles(root, "store")
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, orphans)
}

func TestListOrphanFilesEmptyWhenNoneOrphaned(t *testing.T) {
	root := t.TempDir()
	cfg, err := opossum.NewStoreConfig(root, "store")
	require.NoError(t, err)
	store, err := opossum.NewStore(cfg)
	require.NoError(t, err)

	_, err = store.Append(context.Background(), []opossum.NewEvent{
		opossum.NewNewEvent("A", []byte(`{}`)),
	}, opossum.AppendCondition{})
	require.NoError(t, err)

	orphans, err := ListOrphanFiles(root, "store")
	require.NoError(t, err)
	require.Empty(t, orphans)
}

func TestListOrphanFilesOnUninitializedStoreIsEmpty(t *testing.T) {
	orphans, err := ListOrphanFiles(t.TempDir(), "never-created")
	require.NoError(t, err)
	require.Empty(t, orphans)
}
