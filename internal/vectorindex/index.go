// Package vectorindex stores (path -> vector) or (path -> PQ code) and
// serves exact L2 nearest-neighbor search with a lazy rebuild-on-dirty
// rule. It is grounded in the teacher's internal/store.HNSWStore for the
// persistence technique (gob-encoded metadata, atomic temp+rename save)
// but replaces the teacher's approximate coder/hnsw graph with an exact
// linear scan: spec.md §4.3 requires exact L2 search, and no component in
// this system needs approximate nearest-neighbor search at the scale a
// single container's file tree reaches.
package vectorindex

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Aman-CERP/vectorfs/internal/verrors"
)

// Metric selects the distance function used by Search.
type Metric string

const (
	MetricL2     Metric = "l2"
	MetricCosine Metric = "cosine"
)

type entry struct {
	path    string
	vector  []float32
	code    []byte
	inserted int
}

// Index holds either raw vectors or PQ codes for a single container and
// serves exact nearest-neighbor search. It never owns file content.
type Index struct {
	mu sync.RWMutex

	dim    int
	metric Metric

	entries map[string]*entry
	order   []string // insertion order, for tie-break
	counter int

	dirty bool

	decode func(code []byte) ([]float32, error)
}

// Config controls Index construction.
type Config struct {
	Dimensions int
	Metric     Metric
	// Decode, when set, lets Search operate over PQ codes instead of raw
	// vectors by reconstructing a comparable vector from a code.
	Decode func(code []byte) ([]float32, error)
}

// New constructs an empty index.
func New(cfg Config) *Index {
	metric := cfg.Metric
	if metric == "" {
		metric = MetricL2
	}
	return &Index{
		dim:     cfg.Dimensions,
		metric:  metric,
		entries: make(map[string]*entry),
		decode:  cfg.Decode,
	}
}

// Upsert inserts or replaces the vector (and optional PQ code) for path.
func (idx *Index) Upsert(path string, vec []float32, code []byte) error {
	if vec != nil && len(vec) != idx.dim {
		return verrors.InvalidArgument(fmt.Sprintf("vector dimension %d does not match index dimension %d", len(vec), idx.dim))
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	e, exists := idx.entries[path]
	if !exists {
		idx.counter++
		e = &entry{path: path, inserted: idx.counter}
		idx.entries[path] = e
		idx.order = append(idx.order, path)
	}
	e.vector = vec
	e.code = code
	idx.dirty = true
	return nil
}

// Remove drops path from the index.
func (idx *Index) Remove(path string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.entries[path]; !ok {
		return
	}
	delete(idx.entries, path)
	for i, p := range idx.order {
		if p == path {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
	idx.dirty = true
}

// MarkDirty forces the next Search to rebuild before scanning.
func (idx *Index) MarkDirty() {
	idx.mu.Lock()
	idx.dirty = true
	idx.mu.Unlock()
}

// Rebuild clears the dirty flag. There is no separate internal structure
// to rebuild for an exact linear scan; the hook exists so callers observe
// the same rebuild-on-dirty contract spec.md §4.3 specifies, and so a
// future ANN-backed Index can slot in behind the same interface.
func (idx *Index) Rebuild() {
	idx.mu.Lock()
	idx.dirty = false
	idx.mu.Unlock()
}

// Result is one ranked match.
type Result struct {
	Path     string
	Distance float32
}

// Search returns the k nearest entries to query, ascending by distance,
// tie-broken by insertion order. Triggers Rebuild first if dirty.
func (idx *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != idx.dim {
		return nil, verrors.InvalidArgument(fmt.Sprintf("query dimension %d does not match index dimension %d", len(query), idx.dim))
	}
	if k < 0 {
		return nil, verrors.InvalidArgument("k must be non-negative")
	}

	idx.mu.Lock()
	if idx.dirty {
		idx.dirty = false
	}
	entries := make([]*entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		entries = append(entries, e)
	}
	idx.mu.Unlock()

	if k == 0 || len(entries) == 0 {
		return []Result{}, nil
	}

	type scored struct {
		path     string
		distance float32
		inserted int
	}
	scoredEntries := make([]scored, 0, len(entries))
	for _, e := range entries {
		vec := e.vector
		if vec == nil && e.code != nil && idx.decode != nil {
			decoded, err := idx.decode(e.code)
			if err != nil {
				continue
			}
			vec = decoded
		}
		if vec == nil {
			continue
		}
		d := idx.distance(query, vec)
		scoredEntries = append(scoredEntries, scored{e.path, d, e.inserted})
	}

	sort.Slice(scoredEntries, func(i, j int) bool {
		if scoredEntries[i].distance != scoredEntries[j].distance {
			return scoredEntries[i].distance < scoredEntries[j].distance
		}
		return scoredEntries[i].inserted < scoredEntries[j].inserted
	})

	if k > len(scoredEntries) {
		k = len(scoredEntries)
	}
	out := make([]Result, k)
	for i := 0; i < k; i++ {
		out[i] = Result{Path: scoredEntries[i].path, Distance: scoredEntries[i].distance}
	}
	return out, nil
}

func (idx *Index) distance(a, b []float32) float32 {
	if idx.metric == MetricCosine {
		return 1 - cosineSimilarity(a, b)
	}
	return l2Distance(a, b)
}

func l2Distance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Dirty reports whether the index needs a rebuild before the next search.
func (idx *Index) Dirty() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dirty
}

// persistedEntry is the gob-encoded form of one entry.
type persistedEntry struct {
	Path     string
	Vector   []float32
	Code     []byte
	Inserted int
}

// snapshot is the gob-encoded form of the whole index, grounded in the
// teacher's hnswMetadata shape (IDMap/NextKey/Config -> here Entries/Counter/Dim/Metric).
type snapshot struct {
	Dim     int
	Metric  Metric
	Counter int
	Entries []persistedEntry
}

// Save persists the index to disk via temp file + atomic rename, matching
// HNSWStore.Save's technique.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	snap := snapshot{Dim: idx.dim, Metric: idx.metric, Counter: idx.counter}
	for _, p := range idx.order {
		e := idx.entries[p]
		snap.Entries = append(snap.Entries, persistedEntry{
			Path: e.path, Vector: e.vector, Code: e.code, Inserted: e.inserted,
		})
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	enc := gob.NewEncoder(file)
	if err := enc.Encode(snap); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode index: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp index file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load replaces the index's contents from a Save'd snapshot.
func (idx *Index) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var snap snapshot
	dec := gob.NewDecoder(bufio.NewReader(file))
	if err := dec.Decode(&snap); err != nil {
		return fmt.Errorf("decode index: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.dim = snap.Dim
	idx.metric = snap.Metric
	idx.counter = snap.Counter
	idx.entries = make(map[string]*entry, len(snap.Entries))
	idx.order = idx.order[:0]
	for _, pe := range snap.Entries {
		idx.entries[pe.Path] = &entry{path: pe.Path, vector: pe.Vector, code: pe.Code, inserted: pe.Inserted}
		idx.order = append(idx.order, pe.Path)
	}
	idx.dirty = false
	return nil
}
