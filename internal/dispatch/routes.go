package dispatch

import (
	"context"
	"time"

	"github.com/Aman-CERP/vectorfs/internal/container"
	"github.com/Aman-CERP/vectorfs/internal/isolation"
	"github.com/Aman-CERP/vectorfs/internal/telemetry"
	"github.com/Aman-CERP/vectorfs/internal/verrors"
)

// RegisterDefaultRoutes wires the route table spec.md §4.10 names as
// examples: container/create, container/files, file/delete,
// search/semantic. metrics may be nil, in which case search/semantic
// runs unrecorded.
func RegisterDefaultRoutes(d *Dispatcher, metrics *telemetry.QueryMetrics) {
	d.Register(VerbPOST, "container/create",
		Schema{Fields: []Field{
			{Name: "container_id", Type: FieldString, Required: true},
			{Name: "owner_id", Type: FieldString, Required: true},
		}},
		"container.created",
		[]ResolverKind{ContainerNotExists, UserExists},
		controllerContainerCreate(d.manager),
	)

	d.Register(VerbGET, "container/files",
		Schema{Fields: []Field{
			{Name: "container_id", Type: FieldString, Required: true},
			{Name: "virtual_path", Type: FieldString, Required: false},
		}},
		"container.files.listed",
		[]ResolverKind{ContainerExists, ContainerOwnership, ContainerIsActive},
		controllerContainerFiles,
	)

	d.Register(VerbDELETE, "file/delete",
		Schema{Fields: []Field{
			{Name: "container_id", Type: FieldString, Required: true},
			{Name: "path", Type: FieldString, Required: true},
		}},
		"file.deleted",
		[]ResolverKind{ContainerExists, ContainerOwnership, ContainerIsActive, FileExists},
		controllerFileDelete,
	)

	d.Register(VerbPOST, "file/create",
		Schema{Fields: []Field{
			{Name: "container_id", Type: FieldString, Required: true},
			{Name: "path", Type: FieldString, Required: true},
			{Name: "content", Type: FieldBytes, Required: true},
		}},
		"file.created",
		[]ResolverKind{ContainerExists, ContainerOwnership, ContainerIsActive, FileNotExists},
		controllerFileCreate,
	)

	d.Register(VerbPOST, "search/semantic",
		Schema{Fields: []Field{
			{Name: "container_id", Type: FieldString, Required: true},
			{Name: "query", Type: FieldString, Required: true},
			{Name: "k", Type: FieldInt, Required: false},
		}},
		"search.performed",
		[]ResolverKind{ContainerExists, ContainerOwnership, ContainerIsActive},
		searchSemanticController(metrics),
	)
}

func controllerContainerCreate(manager *container.Manager) Controller {
	return func(_ context.Context, _ ResolvedContext, payload map[string]any) (any, error) {
		containerID, _ := payload["container_id"].(string)
		ownerID, _ := payload["owner_id"].(string)
		cfg := container.Config{ID: containerID, OwnerID: ownerID, Budget: ContainerBudgetFromPayload(payload)}
		if _, err := manager.CreateAndRegister(cfg); err != nil {
			return nil, err
		}
		return map[string]string{"container_id": containerID, "owner_id": ownerID}, nil
	}
}

func controllerContainerFiles(_ context.Context, resolved ResolvedContext, payload map[string]any) (any, error) {
	virtualPath, _ := payload["virtual_path"].(string)
	if virtualPath == "" {
		virtualPath = "/"
	}
	return resolved.Container.ListFiles(virtualPath)
}

func controllerFileDelete(_ context.Context, resolved ResolvedContext, payload map[string]any) (any, error) {
	path, _ := payload["path"].(string)
	if err := resolved.Container.RemoveFile(path); err != nil {
		return nil, err
	}
	return map[string]string{"path": path}, nil
}

func controllerFileCreate(ctx context.Context, resolved ResolvedContext, payload map[string]any) (any, error) {
	path, _ := payload["path"].(string)
	content, err := payloadBytes(payload["content"])
	if err != nil {
		return nil, err
	}
	if err := resolved.Container.AddFile(ctx, path, content); err != nil {
		return nil, err
	}
	return map[string]string{"path": path}, nil
}

// searchSemanticController closes over metrics so every search/semantic
// call records a telemetry.QueryEvent (query type, result count, wall
// latency) without the route table needing its own telemetry-aware
// dispatch path. A nil metrics collector makes this a plain pass-through.
func searchSemanticController(metrics *telemetry.QueryMetrics) Controller {
	return func(ctx context.Context, resolved ResolvedContext, payload map[string]any) (any, error) {
		query, _ := payload["query"].(string)
		k := 5
		if kv, ok := payload["k"]; ok {
			k = intFromAny(kv)
		}

		start := time.Now()
		results, err := resolved.Container.Search().HybridSearch(ctx, query, k)
		latency := time.Since(start)

		if metrics != nil && err == nil {
			metrics.Record(telemetry.QueryEvent{
				Query:       query,
				QueryType:   telemetry.QueryTypeSemantic,
				ResultCount: len(results),
				Latency:     latency,
				Timestamp:   start,
			})
		}
		if err != nil {
			return nil, err
		}
		return results, nil
	}
}

func payloadBytes(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return nil, verrors.InvalidArgument("content field has the wrong type")
	}
}

func intFromAny(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}

// ContainerBudgetFromPayload is a small helper controllers that create
// containers can use to build an isolation.Budget from an optional
// payload field set; unused fields default to unlimited (zero).
func ContainerBudgetFromPayload(payload map[string]any) isolation.Budget {
	return isolation.Budget{
		MemoryCapacity: int64(intFromAny(payload["memory_capacity"])),
		StorageQuota:   int64(intFromAny(payload["storage_quota"])),
		MaxOpenFiles:   int64(intFromAny(payload["max_open_files"])),
	}
}
