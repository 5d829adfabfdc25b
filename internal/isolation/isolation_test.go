package isolation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcess_StartStop_TogglesRunning(t *testing.T) {
	p := New(Budget{})
	assert.False(t, p.Running())
	require.NoError(t, p.Start())
	assert.True(t, p.Running())
	require.NoError(t, p.Stop())
	assert.False(t, p.Running())
}

func TestApply_RejectsUsageOverBudget(t *testing.T) {
	p := New(Budget{MemoryCapacity: 100, StorageQuota: 100, MaxOpenFiles: 10})
	err := p.Apply(Usage{MemoryBytes: 200})
	assert.Error(t, err)
}

func TestApply_AllowsUsageWithinBudget(t *testing.T) {
	p := New(Budget{MemoryCapacity: 100})
	err := p.Apply(Usage{MemoryBytes: 50})
	assert.NoError(t, err)
}

func TestSetLimit_UnknownKeyIsRejected(t *testing.T) {
	p := New(Budget{})
	err := p.SetLimit("bogus", 1)
	assert.Error(t, err)
}

func TestSetLimit_UpdatesEnforcedBudget(t *testing.T) {
	p := New(Budget{})
	require.NoError(t, p.SetLimit(LimitMemory, 10))
	err := p.Apply(Usage{MemoryBytes: 20})
	assert.Error(t, err)
}
