// Package isolation models the PID/cgroup isolation primitive that backs
// a container at the OS level, per spec.md's external-collaborator list.
// It is exposed as a narrow interface so Container can gate its
// Stopped->Running transition through Start without the rest of the
// system depending on real cgroups or PID namespaces. Resource-budget
// enforcement is grounded in the teacher's internal/preflight checks
// (memory.go, disk.go, filelimit.go), adapted from one-shot startup
// checks into a per-container running limit an Apply call enforces.
package isolation

import (
	"sync"

	"github.com/Aman-CERP/vectorfs/internal/verrors"
)

// Isolation gates a container's lifecycle and enforces its resource
// budget. Start/Stop model the PID-namespace boundary; SetLimit sets one
// budget key, and Apply enforces the accumulated limits against current
// usage.
type Isolation interface {
	Start() error
	Stop() error
	SetLimit(key string, value int64) error
	Apply(usage Usage) error
	Running() bool
}

// Usage is the current resource consumption checked against limits.
type Usage struct {
	MemoryBytes   int64
	StorageBytes  int64
	OpenFileCount int64
}

// Budget mirrors spec.md §3's (memory_capacity, storage_quota, max_open_files).
type Budget struct {
	MemoryCapacity int64
	StorageQuota   int64
	MaxOpenFiles   int64
}

// Keys accepted by SetLimit.
const (
	LimitMemory = "memory"
	LimitDisk   = "disk"
	LimitPIDs   = "pids"
)

// InProcess is the in-process Isolation implementation named in SPEC_FULL
// §1: no real cgroups/PID namespace, just the budget-gating contract.
type InProcess struct {
	mu      sync.Mutex
	running bool
	budget  Budget
}

// New constructs an Isolation primitive with the given initial budget.
func New(budget Budget) *InProcess {
	return &InProcess{budget: budget}
}

// Start transitions the primitive to running. Idempotent.
func (p *InProcess) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = true
	return nil
}

// Stop transitions the primitive out of running. Idempotent.
func (p *InProcess) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	return nil
}

// Running reports the current lifecycle state.
func (p *InProcess) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// SetLimit updates one budget key. Allowed in either Running or Stopped
// state (spec.md §4.7).
func (p *InProcess) SetLimit(key string, value int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch key {
	case LimitMemory:
		p.budget.MemoryCapacity = value
	case LimitDisk:
		p.budget.StorageQuota = value
	case LimitPIDs:
		p.budget.MaxOpenFiles = value
	default:
		return verrors.InvalidArgument("unknown resource limit key: " + key)
	}
	return nil
}

// Apply enforces the accumulated budget against usage, grounded in the
// teacher's preflight.CheckMemory/CheckDisk/CheckFileLimit pattern of
// comparing a measured value against a minimum/maximum threshold.
func (p *InProcess) Apply(usage Usage) error {
	p.mu.Lock()
	budget := p.budget
	p.mu.Unlock()

	if budget.MemoryCapacity > 0 && usage.MemoryBytes > budget.MemoryCapacity {
		return verrors.ResourceExhausted("memory capacity exceeded")
	}
	if budget.StorageQuota > 0 && usage.StorageBytes > budget.StorageQuota {
		return verrors.ResourceExhausted("storage quota exceeded")
	}
	if budget.MaxOpenFiles > 0 && usage.OpenFileCount > budget.MaxOpenFiles {
		return verrors.ResourceExhausted("open file limit exceeded")
	}
	return nil
}
