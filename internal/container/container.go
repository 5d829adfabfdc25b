// Package container implements the Container and ContainerManager
// components (spec.md §4.7/§4.8): a resource-limited, owner-bound
// virtual filesystem surface around one Search instance, and a
// thread-safe registry of containers keyed by id. A container's
// in-memory index is the source of truth for queries, but it is backed
// by real files under DataPath: the first Start call reconstructs
// container_config.json/access_policy.json metadata and walks the data
// directory to rebuild Search's file store from whatever is already on
// disk (spec.md §1, §6), and AddFile/RemoveFile keep that directory in
// sync from then on.
//
// Grounded in the teacher's internal/session package for the
// create/lookup/list-under-lock registry shape, internal/preflight for
// the resource-limit gating pattern now expressed through
// internal/isolation, the teacher's use of github.com/gofrs/flock for
// the data-directory lock taken on Start, and
// _examples/original_source/domain/ossec_container_adapter.hpp for the
// disk-backed add_file/remove_file/list_files behavior and the
// walk-and-ingest-on-construction rebuild (disk.go).
package container

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/vectorfs/internal/embed"
	"github.com/Aman-CERP/vectorfs/internal/isolation"
	"github.com/Aman-CERP/vectorfs/internal/pipeline"
	"github.com/Aman-CERP/vectorfs/internal/search"
	"github.com/Aman-CERP/vectorfs/internal/verrors"
)

// Status is a container's lifecycle state (spec.md §4.7).
type Status int

const (
	StatusUnknown Status = iota
	StatusRunning
	StatusStopped
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// ignoredEntries is the fixed set list_files/search_files skip (spec.md §9).
var ignoredEntries = map[string]bool{
	"sys": true, "proc": true, "dev": true, "lost+found": true,
}

// Config describes the static identity of a container at creation.
// These values seed container_config.json/access_policy.json on first
// Start; a later Start against the same DataPath reconstructs them from
// disk instead (see disk.go).
type Config struct {
	ID       string
	OwnerID  string
	Label    string
	DataPath string
	Labels   map[string]string
	Commands []string
	Budget   isolation.Budget
}

// Container couples a data directory with a Search instance, enforcing
// ownership, availability, and resource limits.
type Container struct {
	mu sync.RWMutex

	id       string
	ownerID  string
	label    string
	dataPath string
	labels   map[string]string
	commands map[string]bool

	status    Status
	isolation isolation.Isolation
	budget    isolation.Budget
	dataLock  *flock.Flock

	// loadedFromDisk marks whether Start has already reconstructed this
	// container's metadata and file store from DataPath; subsequent
	// Start calls (e.g. after Stop) skip the rebuild.
	loadedFromDisk bool

	search       *search.Search
	storageBytes int64

	notify *pipeline.Pipeline
}

// New builds a Container in Unknown state, owning a fresh Search bound
// to embedder. Nothing is read from or written to DataPath until Start.
func New(cfg Config, embedder embed.Embedder) *Container {
	labels := make(map[string]string, len(cfg.Labels))
	for k, v := range cfg.Labels {
		labels[k] = v
	}
	commands := make(map[string]bool, len(cfg.Commands))
	for _, cmd := range cfg.Commands {
		commands[cmd] = true
	}
	c := &Container{
		id:        cfg.ID,
		ownerID:   cfg.OwnerID,
		label:     cfg.Label,
		dataPath:  cfg.DataPath,
		labels:    labels,
		commands:  commands,
		status:    StatusUnknown,
		isolation: isolation.New(cfg.Budget),
		budget:    cfg.Budget,
		search:    search.New(embedder),
	}
	if cfg.DataPath != "" {
		c.dataLock = flock.New(filepath.Join(cfg.DataPath, lockFileName))
	}
	return c
}

// SetNotifyPipeline wires a pipeline that AddFile fires every write
// through after the file is durably indexed, for IPC notification
// (spec.md §4.9). A nil pipeline (the default) disables notification.
func (c *Container) SetNotifyPipeline(p *pipeline.Pipeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = p
}

func (c *Container) ID() string      { return c.id }
func (c *Container) OwnerID() string { return c.ownerID }
func (c *Container) Label() string   { return c.label }

func (c *Container) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Start transitions Unknown/Stopped -> Running through the isolation
// primitive's start, taking an exclusive advisory lock on the data
// directory so two daemon processes never mount the same container.
// The first Start for this Container also reconstructs its metadata and
// file store from DataPath (disk.go): container_config.json/
// access_policy.json are read (or written with defaults if absent) and
// every regular file already on disk is fed back into Search, so the
// in-memory index matches whatever was left there by a previous run.
func (c *Container) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusInvalid {
		return verrors.Internal("container is invalid: "+c.id, nil)
	}
	if c.status == StatusRunning {
		return nil
	}
	if c.dataLock != nil {
		locked, err := c.dataLock.TryLock()
		if err != nil {
			c.status = StatusInvalid
			return verrors.Internal("failed to lock container data directory: "+c.id, err)
		}
		if !locked {
			return verrors.ResourceExhausted("container data directory already locked by another process: " + c.id)
		}
	}

	if !c.loadedFromDisk {
		if err := c.loadAccessPolicyLocked(); err != nil {
			c.unlockDataLocked()
			c.status = StatusInvalid
			return err
		}
		c.loadContainerConfigLocked()
		if err := c.loadFilesFromDiskLocked(context.Background()); err != nil {
			c.unlockDataLocked()
			c.status = StatusInvalid
			return err
		}
		if err := c.writeMetadataLocked(); err != nil {
			c.unlockDataLocked()
			c.status = StatusInvalid
			return err
		}
		c.loadedFromDisk = true
	}

	if err := c.isolation.Start(); err != nil {
		c.unlockDataLocked()
		c.status = StatusInvalid
		return err
	}
	c.status = StatusRunning
	return nil
}

func (c *Container) unlockDataLocked() {
	if c.dataLock != nil {
		_ = c.dataLock.Unlock()
	}
}

// Stop transitions Running -> Stopped, releasing the data directory lock.
func (c *Container) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusInvalid {
		return verrors.Internal("container is invalid: "+c.id, nil)
	}
	if c.status != StatusRunning {
		return verrors.InvalidArgument("container is not running: " + c.id)
	}
	if err := c.isolation.Stop(); err != nil {
		return err
	}
	if c.dataLock != nil {
		_ = c.dataLock.Unlock()
	}
	c.status = StatusStopped
	return nil
}

// Invalidate marks the container terminally Invalid; any further
// operation on it fails.
func (c *Container) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusInvalid
}

func (c *Container) requireRunningLocked() error {
	switch c.status {
	case StatusInvalid:
		return verrors.Internal("container is invalid: "+c.id, nil)
	case StatusRunning:
		return nil
	default:
		return verrors.InvalidArgument("container is not running: " + c.id)
	}
}

func (c *Container) requireNotInvalidLocked() error {
	if c.status == StatusInvalid {
		return verrors.Internal("container is invalid: "+c.id, nil)
	}
	return nil
}

// SetLimit forwards to the isolation primitive. Allowed in Running or
// Stopped.
func (c *Container) SetLimit(key string, value int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireNotInvalidLocked(); err != nil {
		return err
	}
	if c.status == StatusUnknown {
		return verrors.InvalidArgument("container has not been started: " + c.id)
	}
	return c.isolation.SetLimit(key, value)
}

// Apply forwards resource usage to the isolation primitive for budget
// enforcement.
func (c *Container) Apply(usage isolation.Usage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireNotInvalidLocked(); err != nil {
		return err
	}
	return c.isolation.Apply(usage)
}

func shouldSkip(name string) bool {
	return ignoredEntries[strings.ToLower(name)]
}

// AddFile refuses when the new total size would reach storage_quota, and
// requires Running. content is written under DataPath before the
// in-memory index is updated, so a crash between the two never leaves
// Search pointing at a file that doesn't exist on disk.
func (c *Container) AddFile(ctx context.Context, path string, content []byte) error {
	c.mu.Lock()
	if err := c.requireRunningLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	projected := c.storageBytes + int64(len(content))
	if c.budget.StorageQuota > 0 && projected >= c.budget.StorageQuota {
		c.mu.Unlock()
		return verrors.ResourceExhausted("storage quota exceeded for container: " + c.id)
	}
	c.mu.Unlock()

	if err := c.persistFile(path, content); err != nil {
		return err
	}

	if err := c.search.AddFile(ctx, path, content); err != nil {
		_ = c.removePersistedFile(path)
		return err
	}

	c.mu.Lock()
	c.storageBytes = projected
	notify := c.notify
	c.mu.Unlock()

	if notify != nil {
		go func() {
			_, _ = notify.Process(context.Background(), pipeline.Item{
				Path: path,
				Text: string(content),
				Meta: map[string]string{"container_id": c.id},
			})
		}()
	}

	return nil
}

// RemoveFile requires Running. The on-disk copy is deleted before the
// in-memory index, mirroring AddFile's disk-first ordering.
func (c *Container) RemoveFile(path string) error {
	c.mu.Lock()
	if err := c.requireRunningLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	rec, ok := c.search.File(path)
	if !ok {
		return verrors.NotFound("file not found: " + path)
	}
	if err := c.removePersistedFile(path); err != nil {
		return err
	}
	if err := c.search.RemoveFile(path); err != nil {
		return err
	}

	c.mu.Lock()
	c.storageBytes -= int64(len(rec.Content))
	if c.storageBytes < 0 {
		c.storageBytes = 0
	}
	c.mu.Unlock()
	return nil
}

// FileExists reports whether path is stored, requires Running.
func (c *Container) FileExists(path string) (bool, error) {
	c.mu.RLock()
	err := c.requireRunningLocked()
	c.mu.RUnlock()
	if err != nil {
		return false, err
	}
	_, ok := c.search.File(path)
	return ok, nil
}

// IsDirectory reports whether path denotes a directory prefix of at
// least one stored file.
func (c *Container) IsDirectory(path string) (bool, error) {
	c.mu.RLock()
	err := c.requireRunningLocked()
	c.mu.RUnlock()
	if err != nil {
		return false, err
	}
	prefix := strings.TrimSuffix(path, "/") + "/"
	for _, p := range c.search.Files() {
		if strings.HasPrefix(p, prefix) {
			return true, nil
		}
	}
	return false, nil
}

// GetFileContent returns the stored bytes for path.
func (c *Container) GetFileContent(path string) ([]byte, error) {
	c.mu.RLock()
	err := c.requireRunningLocked()
	c.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	rec, ok := c.search.File(path)
	if !ok {
		return nil, verrors.NotFound("file not found: " + path)
	}
	c.search.RecordAccess(path, "read")
	return rec.Content, nil
}

// ListFiles returns the immediate children of virtualPath, skipping the
// fixed ignore set.
func (c *Container) ListFiles(virtualPath string) ([]string, error) {
	c.mu.RLock()
	err := c.requireRunningLocked()
	c.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	prefix := strings.TrimSuffix(virtualPath, "/")
	if prefix != "" {
		prefix += "/"
	} else {
		prefix = "/"
	}

	seen := make(map[string]bool)
	var out []string
	for _, p := range c.search.Files() {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if rest == "" {
			continue
		}
		parts := strings.SplitN(rest, "/", 2)
		name := parts[0]
		if shouldSkip(name) || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// SearchFiles returns stored paths whose full path contains pattern,
// ignoring case.
func (c *Container) SearchFiles(pattern string) ([]string, error) {
	c.mu.RLock()
	err := c.requireRunningLocked()
	c.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	var out []string
	for _, p := range c.search.Files() {
		if strings.Contains(strings.ToLower(p), strings.ToLower(pattern)) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Size returns the total bytes currently stored.
func (c *Container) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.storageBytes
}

// Search exposes the owned Search for semantic operations (container's
// delegation point for spec.md §4.6).
func (c *Container) Search() *search.Search { return c.search }

// DataPath returns the on-disk root backing this container.
func (c *Container) DataPath() string { return c.dataPath }

// Commands returns the sorted command list recorded for this container
// (Config.Commands at creation, or container_config.json's "commands"
// field once loaded from disk).
func (c *Container) Commands() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.commands))
	for cmd := range c.commands {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// HasLabel reports whether key is set, optionally matching value too.
func (c *Container) HasLabel(key string, value ...string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.labels[key]
	if !ok {
		return false
	}
	if len(value) == 0 {
		return true
	}
	return v == value[0]
}
