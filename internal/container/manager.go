package container

import (
	"sort"
	"sync"

	"github.com/Aman-CERP/vectorfs/internal/embed"
	"github.com/Aman-CERP/vectorfs/internal/verrors"
)

// Manager is the thread-safe container registry (spec.md §4.8).
type Manager struct {
	mu         sync.Mutex
	containers map[string]*Container
	embedder   embed.Embedder
}

// NewManager constructs an empty registry. embedder is the process-wide
// embedder shared by reference across every container it registers
// (spec.md §3: "never owned by a File").
func NewManager(embedder embed.Embedder) *Manager {
	return &Manager{
		containers: make(map[string]*Container),
		embedder:   embedder,
	}
}

// CreateAndRegister builds a container from cfg and inserts it, rejecting
// duplicate ids.
func (m *Manager) CreateAndRegister(cfg Config) (*Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.containers[cfg.ID]; exists {
		return nil, verrors.AlreadyExists("container already registered: " + cfg.ID)
	}

	c := New(cfg, m.embedder)
	m.containers[cfg.ID] = c
	return c, nil
}

// Unregister marks the Container invalid and erases id from the map. Its
// Search and isolation handle are not stopped here.
func (m *Manager) Unregister(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, exists := m.containers[id]
	if !exists {
		return verrors.NotFound("container not registered: " + id)
	}
	c.Invalidate()
	delete(m.containers, id)
	return nil
}

// Get returns the container registered under id, if any.
func (m *Manager) Get(id string) (*Container, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.containers[id]
	return c, ok
}

// All returns a snapshot of every registered container.
func (m *Manager) All() []*Container {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(func(*Container) bool { return true })
}

// ByOwner returns a snapshot of containers owned by ownerID.
func (m *Manager) ByOwner(ownerID string) []*Container {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(func(c *Container) bool { return c.OwnerID() == ownerID })
}

// ByLabel returns a snapshot of containers carrying key, optionally
// restricted to a matching value.
func (m *Manager) ByLabel(key string, value ...string) []*Container {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(func(c *Container) bool { return c.HasLabel(key, value...) })
}

// Available returns a snapshot of containers currently in Running state.
func (m *Manager) Available() []*Container {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(func(c *Container) bool { return c.Status() == StatusRunning })
}

func (m *Manager) snapshotLocked(keep func(*Container) bool) []*Container {
	out := make([]*Container, 0, len(m.containers))
	for _, c := range m.containers {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Count returns the number of registered containers.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.containers)
}
