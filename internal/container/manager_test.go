package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/vectorfs/internal/embed"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(embed.NewStaticEmbedder(16))
}

func TestManager_CreateAndRegister_RejectsDuplicateID(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateAndRegister(Config{ID: "c1", OwnerID: "u1"})
	require.NoError(t, err)

	_, err = m.CreateAndRegister(Config{ID: "c1", OwnerID: "u2"})
	assert.Error(t, err)
}

func TestManager_Unregister_RemovesAndInvalidates(t *testing.T) {
	m := newTestManager(t)
	c, err := m.CreateAndRegister(Config{ID: "c1", OwnerID: "u1"})
	require.NoError(t, err)
	require.NoError(t, c.Start())

	require.NoError(t, m.Unregister("c1"))
	assert.Equal(t, StatusInvalid, c.Status())

	_, ok := m.Get("c1")
	assert.False(t, ok)
}

func TestManager_ByOwner_FiltersCorrectly(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateAndRegister(Config{ID: "c1", OwnerID: "u1"})
	require.NoError(t, err)
	_, err = m.CreateAndRegister(Config{ID: "c2", OwnerID: "u2"})
	require.NoError(t, err)

	owned := m.ByOwner("u1")
	require.Len(t, owned, 1)
	assert.Equal(t, "c1", owned[0].ID())
}

func TestManager_ByLabel_MatchesKeyAndOptionalValue(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateAndRegister(Config{ID: "c1", OwnerID: "u1", Labels: map[string]string{"env": "prod"}})
	require.NoError(t, err)
	_, err = m.CreateAndRegister(Config{ID: "c2", OwnerID: "u1", Labels: map[string]string{"env": "dev"}})
	require.NoError(t, err)

	prod := m.ByLabel("env", "prod")
	require.Len(t, prod, 1)
	assert.Equal(t, "c1", prod[0].ID())

	any := m.ByLabel("env")
	assert.Len(t, any, 2)
}

func TestManager_Available_OnlyReturnsRunningContainers(t *testing.T) {
	m := newTestManager(t)
	c1, err := m.CreateAndRegister(Config{ID: "c1", OwnerID: "u1"})
	require.NoError(t, err)
	_, err = m.CreateAndRegister(Config{ID: "c2", OwnerID: "u1"})
	require.NoError(t, err)
	require.NoError(t, c1.Start())

	available := m.Available()
	require.Len(t, available, 1)
	assert.Equal(t, "c1", available[0].ID())
}
