package container

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/vectorfs/internal/embed"
	"github.com/Aman-CERP/vectorfs/internal/isolation"
)

func newTestContainer(t *testing.T, budget isolation.Budget) *Container {
	t.Helper()
	return New(Config{ID: "c1", OwnerID: "u1", DataPath: t.TempDir(), Budget: budget}, embed.NewStaticEmbedder(16))
}

func TestContainer_OperationsRequireRunning(t *testing.T) {
	c := newTestContainer(t, isolation.Budget{})
	_, err := c.ListFiles("/")
	assert.Error(t, err)

	require.NoError(t, c.Start())
	_, err = c.ListFiles("/")
	assert.NoError(t, err)
}

func TestContainer_Invalid_FailsEveryOperation(t *testing.T) {
	c := newTestContainer(t, isolation.Budget{})
	require.NoError(t, c.Start())
	c.Invalidate()

	err := c.AddFile(context.Background(), "/a.txt", []byte("x"))
	assert.Error(t, err)
	_, err = c.ListFiles("/")
	assert.Error(t, err)
}

func TestContainer_AddFile_RefusesWhenOverStorageQuota(t *testing.T) {
	c := newTestContainer(t, isolation.Budget{StorageQuota: 4})
	require.NoError(t, c.Start())

	err := c.AddFile(context.Background(), "/a.txt", []byte("hello world"))
	assert.Error(t, err)
}

func TestContainer_AddFile_GetFileContent_RoundTrip(t *testing.T) {
	c := newTestContainer(t, isolation.Budget{StorageQuota: 1 << 20})
	require.NoError(t, c.Start())

	require.NoError(t, c.AddFile(context.Background(), "/docs/readme.txt", []byte("hello")))
	content, err := c.GetFileContent("/docs/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
	assert.Equal(t, int64(5), c.Size())
}

func TestContainer_ListFiles_SkipsIgnoredEntriesAndDedupes(t *testing.T) {
	c := newTestContainer(t, isolation.Budget{StorageQuota: 1 << 20})
	require.NoError(t, c.Start())
	ctx := context.Background()
	require.NoError(t, c.AddFile(ctx, "/docs/a.txt", []byte("a")))
	require.NoError(t, c.AddFile(ctx, "/docs/b.txt", []byte("b")))
	require.NoError(t, c.AddFile(ctx, "/sys/ignored.txt", []byte("c")))

	entries, err := c.ListFiles("/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"docs"}, entries)

	docEntries, err := c.ListFiles("/docs")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, docEntries)
}

func TestContainer_RemoveFile_RefundsStorageAndDropsFromStore(t *testing.T) {
	c := newTestContainer(t, isolation.Budget{StorageQuota: 1 << 20})
	require.NoError(t, c.Start())
	require.NoError(t, c.AddFile(context.Background(), "/a.txt", []byte("hello")))

	require.NoError(t, c.RemoveFile("/a.txt"))
	assert.Equal(t, int64(0), c.Size())
	exists, err := c.FileExists("/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestContainer_SetLimit_DisallowedBeforeStart(t *testing.T) {
	c := newTestContainer(t, isolation.Budget{})
	err := c.SetLimit(isolation.LimitMemory, 100)
	assert.Error(t, err)
}

func TestContainer_Start_RebuildsFileStoreFromDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := New(Config{ID: "c1", OwnerID: "u1", DataPath: dir, Budget: isolation.Budget{StorageQuota: 1 << 20}}, embed.NewStaticEmbedder(16))
	require.NoError(t, first.Start())
	require.NoError(t, first.AddFile(ctx, "/docs/readme.txt", []byte("hello from disk")))
	require.NoError(t, first.Stop())

	reopened := New(Config{ID: "c1", OwnerID: "u1", DataPath: dir, Budget: isolation.Budget{StorageQuota: 1 << 20}}, embed.NewStaticEmbedder(16))
	require.NoError(t, reopened.Start())

	content, err := reopened.GetFileContent("/docs/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello from disk", string(content))
	assert.Equal(t, int64(len("hello from disk")), reopened.Size())

	exists, err := reopened.FileExists("/docs/readme.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestContainer_RemoveFile_DeletesFromDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c := New(Config{ID: "c1", OwnerID: "u1", DataPath: dir, Budget: isolation.Budget{StorageQuota: 1 << 20}}, embed.NewStaticEmbedder(16))
	require.NoError(t, c.Start())
	require.NoError(t, c.AddFile(ctx, "/a.txt", []byte("hello")))
	require.NoError(t, c.RemoveFile("/a.txt"))

	_, statErr := os.Stat(filepath.Join(dir, "a.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestContainer_Start_LoadsContainerConfigAndWritesMetadataFiles(t *testing.T) {
	dir := t.TempDir()
	c := New(Config{ID: "c1", OwnerID: "u1", Label: "mine", DataPath: dir, Commands: []string{"reindex"}}, embed.NewStaticEmbedder(16))
	require.NoError(t, c.Start())

	assert.FileExists(t, filepath.Join(dir, "container_config.json"))
	assert.FileExists(t, filepath.Join(dir, "access_policy.json"))
	assert.Equal(t, []string{"reindex"}, c.Commands())
}

func TestContainer_Start_RejectsMismatchedOwnerOnDisk(t *testing.T) {
	dir := t.TempDir()
	first := New(Config{ID: "c1", OwnerID: "u1", DataPath: dir}, embed.NewStaticEmbedder(16))
	require.NoError(t, first.Start())
	require.NoError(t, first.Stop())

	other := New(Config{ID: "c1", OwnerID: "someone-else", DataPath: dir}, embed.NewStaticEmbedder(16))
	assert.Error(t, other.Start())
}

func TestContainer_Start_RefusesWhenDataDirAlreadyLocked(t *testing.T) {
	dir := t.TempDir()
	first := New(Config{ID: "c1", OwnerID: "u1", DataPath: dir}, embed.NewStaticEmbedder(16))
	second := New(Config{ID: "c1-dup", OwnerID: "u1", DataPath: dir}, embed.NewStaticEmbedder(16))

	require.NoError(t, first.Start())
	defer first.Stop()

	err := second.Start()
	assert.Error(t, err)

	require.NoError(t, first.Stop())
	require.NoError(t, second.Start())
}
