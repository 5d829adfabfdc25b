// Package fuseadapter mounts one Container as a FUSE filesystem
// (spec.md §6): ordinary files mirror the container's file store; a
// reserved root entry set (.search, .reindex, .embeddings, .markov,
// .all, .debug, .containers) answers with generated reports on read.
// This is the only layer that translates a *verrors.VError into a
// POSIX errno.
//
// Grounded in github.com/hanwen/go-fuse/v2/fs's node API (no teacher or
// pack example builds a real filesystem, so the Inode/NodeXxxer method
// set below follows the library's own idioms rather than an
// in-corpus model).
package fuseadapter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/Aman-CERP/vectorfs/internal/container"
	"github.com/Aman-CERP/vectorfs/internal/verrors"
)

// reservedNames lists the root's pseudo entries (spec.md §6).
var reservedNames = map[string]bool{
	".search": true, ".reindex": true, ".embeddings": true,
	".markov": true, ".all": true, ".debug": true, ".containers": true,
}

// errnoForKind is the sole Kind->errno translation table in the system.
func errnoForKind(err error) syscall.Errno {
	switch verrors.GetKind(err) {
	case verrors.KindNotFound:
		return syscall.ENOENT
	case verrors.KindPermissionDenied:
		return syscall.EACCES
	case verrors.KindAlreadyExists:
		return syscall.EEXIST
	case verrors.KindInvalidArgument:
		return syscall.EINVAL
	case verrors.KindResourceExhausted:
		return syscall.ENOSPC
	case verrors.KindTransient:
		return syscall.EAGAIN
	case verrors.KindCorruption:
		return syscall.EIO
	case "":
		return syscall.OK
	default:
		return syscall.EIO
	}
}

// Node is both the root and every regular-file/directory inode of the
// mounted container; which role it plays is determined by virtualPath
// and whether it names a reserved pseudo-entry.
type Node struct {
	fs.Inode

	c           *container.Container
	virtualPath string
}

var (
	_ fs.NodeGetattrer  = (*Node)(nil)
	_ fs.NodeLookuper   = (*Node)(nil)
	_ fs.NodeReaddirer  = (*Node)(nil)
	_ fs.NodeOpener     = (*Node)(nil)
	_ fs.NodeReader     = (*Node)(nil)
	_ fs.NodeWriter     = (*Node)(nil)
	_ fs.NodeCreater    = (*Node)(nil)
	_ fs.NodeMkdirer    = (*Node)(nil)
	_ fs.NodeUnlinker   = (*Node)(nil)
	_ fs.NodeRmdirer    = (*Node)(nil)
	_ fs.NodeGetxattrer  = (*Node)(nil)
	_ fs.NodeSetxattrer  = (*Node)(nil)
	_ fs.NodeListxattrer = (*Node)(nil)
	_ fs.NodeSetattrer   = (*Node)(nil)
)

// NewRoot builds the root inode for c.
func NewRoot(c *container.Container) *Node {
	return &Node{c: c, virtualPath: "/"}
}

func (n *Node) isReserved() bool {
	return reservedNames[n.virtualPath] || strings.HasPrefix(n.virtualPath, "/.search/")
}

func (n *Node) isDir() bool {
	if n.virtualPath == "/" || n.virtualPath == "/.containers" || n.virtualPath == "/.search" {
		return true
	}
	if n.isReserved() {
		return false
	}
	isDir, _ := n.c.IsDirectory(n.virtualPath)
	return isDir
}

func (n *Node) Getattr(_ context.Context, _ fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if n.isDir() {
		out.Mode = fuse.S_IFDIR | 0755
		return syscall.OK
	}
	if n.isReserved() {
		out.Mode = fuse.S_IFREG | 0444
		return syscall.OK
	}

	rec, ok := n.c.Search().File(n.virtualPath)
	if !ok {
		return syscall.ENOENT
	}
	out.Mode = fuse.S_IFREG | 0644
	out.Size = uint64(rec.Size)
	out.Mtime = uint64(rec.Mtime.Unix())
	out.Atime = uint64(rec.Atime.Unix())
	out.Ctime = uint64(rec.Ctime.Unix())
	return syscall.OK
}

func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	childPath := joinVirtual(n.virtualPath, name)

	if n.virtualPath == "/" && reservedNames[name] {
		child := &Node{c: n.c, virtualPath: "/" + name}
		mode := uint32(fuse.S_IFREG)
		if name == ".containers" || name == ".search" {
			mode = fuse.S_IFDIR
		}
		return n.NewInode(ctx, child, fs.StableAttr{Mode: mode}), syscall.OK
	}

	if strings.HasPrefix(n.virtualPath, "/.search") {
		child := &Node{c: n.c, virtualPath: childPath}
		return n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFREG}), syscall.OK
	}

	exists, err := n.c.FileExists(childPath)
	if err != nil {
		return nil, errnoForKind(err)
	}
	if exists {
		child := &Node{c: n.c, virtualPath: childPath}
		return n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFREG}), syscall.OK
	}

	isDir, err := n.c.IsDirectory(childPath)
	if err != nil {
		return nil, errnoForKind(err)
	}
	if isDir {
		child := &Node{c: n.c, virtualPath: childPath}
		return n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFDIR}), syscall.OK
	}

	return nil, syscall.ENOENT
}

func (n *Node) Readdir(_ context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.c.ListFiles(n.virtualPath)
	if err != nil {
		return nil, errnoForKind(err)
	}

	var dirEntries []fuse.DirEntry
	for _, name := range entries {
		dirEntries = append(dirEntries, fuse.DirEntry{Name: name, Mode: fuse.S_IFREG})
	}
	if n.virtualPath == "/" {
		for name := range reservedNames {
			mode := uint32(fuse.S_IFREG)
			if name == ".containers" || name == ".search" {
				mode = fuse.S_IFDIR
			}
			dirEntries = append(dirEntries, fuse.DirEntry{Name: name, Mode: mode})
		}
	}
	return fs.NewListDirStream(dirEntries), syscall.OK
}

func (n *Node) Open(_ context.Context, _ uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, 0, syscall.OK
}

func (n *Node) Read(ctx context.Context, _ fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	content, errno := n.content(ctx)
	if errno != syscall.OK {
		return nil, errno
	}
	if off >= int64(len(content)) {
		return fuse.ReadResultData(nil), syscall.OK
	}
	end := off + int64(len(dest))
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	return fuse.ReadResultData(content[off:end]), syscall.OK
}

func (n *Node) content(_ context.Context) ([]byte, syscall.Errno) {
	switch n.virtualPath {
	case "/.reindex":
		return []byte(renderReindex(n.c)), syscall.OK
	case "/.embeddings":
		return []byte(renderEmbeddings(n.c)), syscall.OK
	case "/.all":
		return []byte(renderAll(n.c)), syscall.OK
	case "/.debug":
		return []byte(renderDebug(n.c)), syscall.OK
	case "/.markov":
		return []byte(renderMarkov(n.c)), syscall.OK
	}
	if strings.HasPrefix(n.virtualPath, "/.search/") {
		encoded := strings.TrimPrefix(n.virtualPath, "/.search/")
		query, err := url.QueryUnescape(encoded)
		if err != nil {
			query = encoded
		}
		return []byte(renderSearchReport(n.c, query)), syscall.OK
	}

	rec, ok := n.c.Search().File(n.virtualPath)
	if !ok {
		return nil, syscall.ENOENT
	}
	return rec.Content, syscall.OK
}

func (n *Node) Write(ctx context.Context, _ fs.FileHandle, data []byte, _ int64) (uint32, syscall.Errno) {
	exists, err := n.c.FileExists(n.virtualPath)
	if err != nil {
		return 0, errnoForKind(err)
	}
	if exists {
		if err := n.c.Search().UpdateFile(ctx, n.virtualPath, data); err != nil {
			return 0, errnoForKind(err)
		}
	} else if err := n.c.AddFile(ctx, n.virtualPath, data); err != nil {
		return 0, errnoForKind(err)
	}
	return uint32(len(data)), syscall.OK
}

func (n *Node) Create(ctx context.Context, name string, _ uint32, _ uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	childPath := joinVirtual(n.virtualPath, name)
	if err := n.c.AddFile(ctx, childPath, nil); err != nil {
		return nil, nil, 0, errnoForKind(err)
	}
	child := &Node{c: n.c, virtualPath: childPath}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFREG}), nil, 0, syscall.OK
}

func (n *Node) Mkdir(ctx context.Context, name string, _ uint32, _ *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	childPath := joinVirtual(n.virtualPath, name) + "/.keep"
	if err := n.c.AddFile(ctx, childPath, nil); err != nil {
		return nil, errnoForKind(err)
	}
	child := &Node{c: n.c, virtualPath: joinVirtual(n.virtualPath, name)}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFDIR}), syscall.OK
}

func (n *Node) Unlink(_ context.Context, name string) syscall.Errno {
	childPath := joinVirtual(n.virtualPath, name)
	if err := n.c.RemoveFile(childPath); err != nil {
		return errnoForKind(err)
	}
	return syscall.OK
}

func (n *Node) Rmdir(_ context.Context, name string) syscall.Errno {
	childPath := joinVirtual(n.virtualPath, name)
	isDir, err := n.c.IsDirectory(childPath)
	if err != nil {
		return errnoForKind(err)
	}
	if !isDir {
		return syscall.ENOTDIR
	}
	keepPath := childPath + "/.keep"
	_ = n.c.RemoveFile(keepPath)
	return syscall.OK
}

// Setattr implements utimens: go-fuse routes both chmod/chown and
// atime/mtime updates through here, distinguished by in.Valid's bits.
func (n *Node) Setattr(_ context.Context, _ fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	rec, ok := n.c.Search().File(n.virtualPath)
	if !ok {
		return syscall.ENOENT
	}

	if atime, ok := in.GetATime(); ok {
		rec.Atime = atime
	}
	if mtime, ok := in.GetMTime(); ok {
		rec.Mtime = mtime
	}

	out.Mode = fuse.S_IFREG | 0644
	out.Size = uint64(rec.Size)
	out.Atime = uint64(rec.Atime.Unix())
	out.Mtime = uint64(rec.Mtime.Unix())
	return syscall.OK
}

func (n *Node) Getxattr(_ context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	rec, ok := n.c.Search().File(n.virtualPath)
	if !ok {
		return 0, syscall.ENOENT
	}

	var value string
	switch attr {
	case "user.embedding.size":
		value = strconv.Itoa(len(rec.Vector))
	case "user.embedding.updated":
		value = strconv.FormatBool(rec.EmbeddingFresh)
	case "user.content.size":
		value = strconv.FormatInt(rec.Size, 10)
	default:
		return 0, syscall.ENODATA
	}

	if len(dest) < len(value) {
		return uint32(len(value)), syscall.ERANGE
	}
	copy(dest, value)
	return uint32(len(value)), syscall.OK
}

func (n *Node) Setxattr(_ context.Context, _ string, _ []byte, _ uint32) syscall.Errno {
	return syscall.ENOSYS
}

func (n *Node) Listxattr(_ context.Context, dest []byte) (uint32, syscall.Errno) {
	names := "user.embedding.size\x00user.embedding.updated\x00user.content.size\x00"
	if len(dest) < len(names) {
		return uint32(len(names)), syscall.ERANGE
	}
	copy(dest, names)
	return uint32(len(names)), syscall.OK
}

func joinVirtual(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return strings.TrimSuffix(parent, "/") + "/" + name
}

func renderReindex(c *container.Container) string {
	c.Search().Graph().RandomWalkRanking(1000, 50)
	return fmt.Sprintf("reindexed %d files\n", c.Search().FileCount())
}

func renderEmbeddings(c *container.Container) string {
	var b strings.Builder
	for _, p := range c.Search().Files() {
		rec, ok := c.Search().File(p)
		if !ok || !rec.EmbeddingFresh {
			continue
		}
		n := 5
		if len(rec.Vector) < n {
			n = len(rec.Vector)
		}
		fmt.Fprintf(&b, "%s: %v\n", p, rec.Vector[:n])
	}
	return b.String()
}

func renderAll(c *container.Container) string {
	return strings.Join(c.Search().Files(), "\n") + "\n"
}

func renderDebug(c *container.Container) string {
	files := c.Search().Files()
	var dirs int
	seen := map[string]bool{}
	for _, p := range files {
		parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
		for i := 1; i < len(parts); i++ {
			dir := "/" + strings.Join(parts[:i], "/")
			if !seen[dir] {
				seen[dir] = true
				dirs++
			}
		}
	}
	return fmt.Sprintf("virtual_files=%d virtual_dirs=%d\n", len(files), dirs)
}

func renderMarkov(c *container.Container) string {
	hmm := c.Search().HMM()
	var b strings.Builder
	b.WriteString("hmm self-test\n")
	for _, p := range c.Search().Files() {
		state := hmm.Classify(p, c.Search().Files())
		fmt.Fprintf(&b, "%s -> %v\n", p, state)
	}
	return b.String()
}

func renderSearchReport(c *container.Container, query string) string {
	ctx := context.Background()
	results, err := c.Search().HybridSearch(ctx, query, 5)
	if err != nil {
		return fmt.Sprintf("search error: %v\n", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "top results for %q:\n", query)
	for _, r := range results {
		fmt.Fprintf(&b, "  %s (distance=%.4f)\n", r.Path, r.Distance)
	}

	if len(results) > 0 {
		b.WriteString("recommendations:\n")
		for _, rec := range c.Search().Recommendations(results[0].Path) {
			fmt.Fprintf(&b, "  %s (score=%.4f)\n", rec.Path, rec.Score)
		}
	}

	b.WriteString("predicted next:\n")
	for _, p := range c.Search().PredictNext(3) {
		fmt.Fprintf(&b, "  %s (p=%.4f)\n", p.Path, p.Probability)
	}

	b.WriteString("semantic hubs:\n")
	for _, h := range c.Search().Graph().GetSemanticHubs(3) {
		fmt.Fprintf(&b, "  %s (score=%.4f)\n", h.Path, h.Score)
	}

	return b.String()
}
