package container

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Aman-CERP/vectorfs/internal/isolation"
	"github.com/Aman-CERP/vectorfs/internal/verrors"
)

// Per-container data directory layout (spec.md §6): container_config.json
// and access_policy.json sit alongside the container's files;
// lockFileName is the flock advisory lock, not a virtual file.
const (
	containerConfigFile = "container_config.json"
	accessPolicyFile    = "access_policy.json"
	lockFileName        = ".vectorfs.lock"
)

// containerConfigDoc is container_config.json: the identity metadata
// spec.md §6 says is "consulted at load to reconstruct metadata".
type containerConfigDoc struct {
	ID       string            `json:"id"`
	OwnerID  string            `json:"owner_id"`
	Label    string            `json:"label"`
	Labels   map[string]string `json:"labels,omitempty"`
	Commands []string          `json:"commands,omitempty"`
}

// accessPolicyDoc is access_policy.json: the resource budget and owning
// identity enforced for this container's data directory.
type accessPolicyDoc struct {
	OwnerID string           `json:"owner_id"`
	Budget  isolation.Budget `json:"budget"`
}

func isMetadataFile(name string) bool {
	return name == containerConfigFile || name == accessPolicyFile || name == lockFileName
}

// loadContainerConfigLocked reads container_config.json if present and
// overlays its label/labels/commands onto the in-memory identity. A
// missing file is not an error: a brand-new data directory has none yet,
// and writeMetadataLocked creates it before Start returns. Caller must
// hold c.mu.
func (c *Container) loadContainerConfigLocked() {
	if c.dataPath == "" {
		return
	}
	data, err := os.ReadFile(filepath.Join(c.dataPath, containerConfigFile))
	if err != nil {
		return
	}
	var doc containerConfigDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return
	}

	if doc.Label != "" {
		c.label = doc.Label
	}
	for k, v := range doc.Labels {
		c.labels[k] = v
	}
	for _, cmd := range doc.Commands {
		c.commands[cmd] = true
	}
}

// loadAccessPolicyLocked reads access_policy.json if present. A
// recorded owner that disagrees with this Container's configured owner
// fails the load outright: the data directory belongs to someone else.
// A missing file is not an error. Caller must hold c.mu.
func (c *Container) loadAccessPolicyLocked() error {
	if c.dataPath == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(c.dataPath, accessPolicyFile))
	if err != nil {
		return nil
	}
	var doc accessPolicyDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return verrors.Internal("invalid access_policy.json for container: "+c.id, err)
	}

	if doc.OwnerID != "" && doc.OwnerID != c.ownerID {
		return verrors.InvalidArgument("container data directory is owned by " + doc.OwnerID + ", not " + c.ownerID)
	}
	if (doc.Budget != isolation.Budget{}) {
		c.budget = doc.Budget
		c.isolation = isolation.New(doc.Budget)
	}
	return nil
}

// writeMetadataLocked persists container_config.json/access_policy.json
// under DataPath, creating the directory if needed. Called once per
// container, after the disk rebuild, so a later process can reconstruct
// this container's identity from disk alone. Caller must hold c.mu.
func (c *Container) writeMetadataLocked() error {
	if c.dataPath == "" {
		return nil
	}
	if err := os.MkdirAll(c.dataPath, 0o755); err != nil {
		return verrors.Internal("failed to create container data directory: "+c.id, err)
	}

	commands := make([]string, 0, len(c.commands))
	for cmd := range c.commands {
		commands = append(commands, cmd)
	}
	sort.Strings(commands)

	cfgDoc := containerConfigDoc{
		ID:       c.id,
		OwnerID:  c.ownerID,
		Label:    c.label,
		Labels:   c.labels,
		Commands: commands,
	}
	if err := writeJSON(filepath.Join(c.dataPath, containerConfigFile), cfgDoc); err != nil {
		return err
	}

	policyDoc := accessPolicyDoc{OwnerID: c.ownerID, Budget: c.budget}
	return writeJSON(filepath.Join(c.dataPath, accessPolicyFile), policyDoc)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return verrors.Internal("failed to marshal "+filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return verrors.Internal("failed to write "+filepath.Base(path), err)
	}
	return nil
}

// loadFilesFromDiskLocked walks DataPath and feeds every regular file's
// content into Search.AddFile, rebuilding the in-memory index from
// whatever is already on disk (spec.md §1: "the core is an in-memory
// index rebuilt from the on-disk file tree at start"). Ignored entries
// (ignoredEntries) and the container's own metadata/lock files are
// skipped. Caller must hold c.mu; Search has its own internal locking,
// so calling into it here does not deadlock.
func (c *Container) loadFilesFromDiskLocked(ctx context.Context) error {
	if c.dataPath == "" {
		return nil
	}
	if _, err := os.Stat(c.dataPath); os.IsNotExist(err) {
		return nil
	}

	var total int64
	walkErr := filepath.WalkDir(c.dataPath, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(c.dataPath, fullPath)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if shouldSkip(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if shouldSkip(name) || isMetadataFile(name) {
			return nil
		}

		content, readErr := os.ReadFile(fullPath)
		if readErr != nil {
			return verrors.Internal("failed to read "+fullPath, readErr)
		}

		virtualPath := "/" + filepath.ToSlash(rel)
		if addErr := c.search.AddFile(ctx, virtualPath, content); addErr != nil {
			return verrors.Internal("failed to index "+virtualPath, addErr)
		}
		total += int64(len(content))
		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	c.storageBytes = total
	return nil
}

// persistFile writes content to DataPath+path, creating parent
// directories as needed. A no-op for containers with no backing data
// directory (e.g. pure in-memory test fixtures).
func (c *Container) persistFile(path string, content []byte) error {
	if c.dataPath == "" {
		return nil
	}
	fullPath := filepath.Join(c.dataPath, filepath.FromSlash(strings.TrimPrefix(path, "/")))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return verrors.Internal("failed to create directory for "+path, err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		return verrors.Internal("failed to write file "+path, err)
	}
	return nil
}

// removePersistedFile deletes the on-disk copy of path, ignoring a
// missing file.
func (c *Container) removePersistedFile(path string) error {
	if c.dataPath == "" {
		return nil
	}
	fullPath := filepath.Join(c.dataPath, filepath.FromSlash(strings.TrimPrefix(path, "/")))
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return verrors.Internal("failed to remove file "+path, err)
	}
	return nil
}
