package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/vectorfs/internal/container"
	"github.com/Aman-CERP/vectorfs/internal/embed"
	"github.com/Aman-CERP/vectorfs/internal/isolation"
	"github.com/Aman-CERP/vectorfs/internal/telemetry"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *container.Manager) {
	t.Helper()
	manager := container.NewManager(embed.NewStaticEmbedder(16))
	d := New(manager)
	RegisterDefaultRoutes(d, nil)
	return d, manager
}

func TestDispatch_UnknownRoute_ReturnsErrorEnvelope(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), Request{Verb: VerbGET, Path: "bogus/route", RequestID: "r1"})
	assert.False(t, resp.Success)
	assert.Equal(t, "r1", resp.RequestID)
}

func TestDispatch_MissingRequiredField_FailsSchemaValidation(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), Request{
		Verb: VerbPOST, Path: "container/create", RequestID: "r2",
		Payload: map[string]any{"container_id": "c1"},
	})
	assert.False(t, resp.Success)
}

func TestDispatch_ContainerCreate_Succeeds(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), Request{
		Verb: VerbPOST, Path: "container/create", RequestID: "r3", UserID: "u1",
		Payload: map[string]any{"container_id": "c1", "owner_id": "u1"},
	})
	assert.True(t, resp.Success)
}

func TestDispatch_FileCreate_RunsFullResolverChain(t *testing.T) {
	d, manager := newTestDispatcher(t)
	c, err := manager.CreateAndRegister(container.Config{ID: "c1", OwnerID: "u1", Budget: testBudget()})
	require.NoError(t, err)
	require.NoError(t, c.Start())

	resp := d.Dispatch(context.Background(), Request{
		Verb: VerbPOST, Path: "file/create", RequestID: "r4", UserID: "u1",
		Payload: map[string]any{"container_id": "c1", "path": "/a.txt", "content": []byte("hello")},
	})
	assert.True(t, resp.Success)
}

func TestDispatch_FileCreate_RejectsWrongOwner(t *testing.T) {
	d, manager := newTestDispatcher(t)
	c, err := manager.CreateAndRegister(container.Config{ID: "c1", OwnerID: "u1", Budget: testBudget()})
	require.NoError(t, err)
	require.NoError(t, c.Start())

	resp := d.Dispatch(context.Background(), Request{
		Verb: VerbPOST, Path: "file/create", RequestID: "r5", UserID: "someone-else",
		Payload: map[string]any{"container_id": "c1", "path": "/a.txt", "content": []byte("hello")},
	})
	assert.False(t, resp.Success)
}

func TestDispatch_FileDelete_FailsWhenFileDoesNotExist(t *testing.T) {
	d, manager := newTestDispatcher(t)
	c, err := manager.CreateAndRegister(container.Config{ID: "c1", OwnerID: "u1", Budget: testBudget()})
	require.NoError(t, err)
	require.NoError(t, c.Start())

	resp := d.Dispatch(context.Background(), Request{
		Verb: VerbDELETE, Path: "file/delete", RequestID: "r6", UserID: "u1",
		Payload: map[string]any{"container_id": "c1", "path": "/missing.txt"},
	})
	assert.False(t, resp.Success)
}

func TestDispatch_SearchSemantic_RecordsQueryMetrics(t *testing.T) {
	manager := container.NewManager(embed.NewStaticEmbedder(16))
	d := New(manager)
	metrics := telemetry.NewQueryMetrics(nil)
	RegisterDefaultRoutes(d, metrics)

	c, err := manager.CreateAndRegister(container.Config{ID: "c1", OwnerID: "u1", Budget: testBudget()})
	require.NoError(t, err)
	require.NoError(t, c.Start())
	require.NoError(t, c.AddFile(context.Background(), "/a.txt", []byte("hello world")))

	resp := d.Dispatch(context.Background(), Request{
		Verb: VerbPOST, Path: "search/semantic", RequestID: "r7", UserID: "u1",
		Payload: map[string]any{"container_id": "c1", "query": "hello"},
	})
	assert.True(t, resp.Success)

	snapshot := metrics.Snapshot()
	assert.Equal(t, int64(1), snapshot.TotalQueries)
	assert.Equal(t, int64(1), snapshot.QueryTypeCounts[telemetry.QueryTypeSemantic])
}

func testBudget() isolation.Budget {
	return isolation.Budget{StorageQuota: 1 << 20}
}
