package fuseadapter

import (
	"context"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/vectorfs/internal/container"
	"github.com/Aman-CERP/vectorfs/internal/embed"
	"github.com/Aman-CERP/vectorfs/internal/isolation"
	"github.com/Aman-CERP/vectorfs/internal/verrors"
)

func newTestContainer(t *testing.T) *container.Container {
	t.Helper()
	c := container.New(container.Config{ID: "c1", OwnerID: "u1", Budget: isolation.Budget{StorageQuota: 1 << 20}}, embed.NewStaticEmbedder(16))
	require.NoError(t, c.Start())
	return c
}

func TestErrnoForKind_MapsEachKindToAnErrno(t *testing.T) {
	cases := map[error]syscall.Errno{
		nil:                             syscall.Errno(0),
		verrors.NotFound("x"):           syscall.ENOENT,
		verrors.PermissionDenied("x"):   syscall.EACCES,
		verrors.AlreadyExists("x"):      syscall.EEXIST,
		verrors.InvalidArgument("x"):    syscall.EINVAL,
		verrors.ResourceExhausted("x"):  syscall.ENOSPC,
		verrors.Transient("x", nil):     syscall.EAGAIN,
		verrors.Corruption("x", nil):    syscall.EIO,
		verrors.Internal("x", nil):      syscall.EIO,
		verrors.Configuration("x", nil): syscall.EIO,
	}
	for err, want := range cases {
		assert.Equal(t, uint32(want), uint32(errnoForKind(err)))
	}
}

func TestNode_IsDir_RootAndReservedDirs(t *testing.T) {
	c := newTestContainer(t)
	root := NewRoot(c)
	assert.True(t, root.isDir())

	search := &Node{c: c, virtualPath: "/.search"}
	assert.True(t, search.isDir())

	reindex := &Node{c: c, virtualPath: "/.reindex"}
	assert.False(t, reindex.isDir())
}

func TestNode_Content_RendersAllAndDebugReports(t *testing.T) {
	c := newTestContainer(t)
	require.NoError(t, c.AddFile(context.Background(), "/a.go", []byte("package main")))

	allNode := &Node{c: c, virtualPath: "/.all"}
	content, errno := allNode.content(context.Background())
	require.Equal(t, uint32(0), uint32(errno))
	assert.Contains(t, string(content), "/a.go")

	debugNode := &Node{c: c, virtualPath: "/.debug"}
	content, errno = debugNode.content(context.Background())
	require.Equal(t, uint32(0), uint32(errno))
	assert.True(t, strings.HasPrefix(string(content), "virtual_files="))
}

func TestNode_Content_SearchReportIncludesQuery(t *testing.T) {
	c := newTestContainer(t)
	require.NoError(t, c.AddFile(context.Background(), "/db.go", []byte("database connection pool manager")))

	node := &Node{c: c, virtualPath: "/.search/database%20connection"}
	content, errno := node.content(context.Background())
	require.Equal(t, uint32(0), uint32(errno))
	assert.Contains(t, string(content), "database connection")
}

func TestJoinVirtual_RootAndNested(t *testing.T) {
	assert.Equal(t, "/a.txt", joinVirtual("/", "a.txt"))
	assert.Equal(t, "/dir/a.txt", joinVirtual("/dir", "a.txt"))
}
