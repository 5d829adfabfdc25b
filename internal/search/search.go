// Package search implements the per-container Search component (spec.md
// §4.6): it owns one Embedder handle, one VectorIndex, one SemanticGraph,
// one HMM, a file store, and a bounded ring of recent queries, and
// exposes the add/remove/update/semantic/hybrid/predictive operations a
// Container delegates to. Adapted from the teacher's
// internal/search/engine.go (overall shape) and internal/search/fusion.go
// (RRF scoring style, generalized here to spec.md's
// distance*(1+importance) hybrid rule) plus the teacher's
// internal/session recent-query ring, adapted into the bounded
// access-history deque spec.md §3/§4.6 describes.
package search

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/vectorfs/internal/embed"
	"github.com/Aman-CERP/vectorfs/internal/graph"
	"github.com/Aman-CERP/vectorfs/internal/markov"
	"github.com/Aman-CERP/vectorfs/internal/vectorindex"
	"github.com/Aman-CERP/vectorfs/internal/verrors"
)

const (
	// recentQueryCapacity and recentQueryEvictBatch implement the
	// bounded ring of recent queries (spec.md §4.6), distinct from the
	// graph's own 1000-capacity access deque (spec.md §3).
	recentQueryCapacity  = 50
	recentQueryEvictBatch = 10

	// hmmTrainingWindow is the tail window appended as an HMM training
	// sequence once enough recent queries have accumulated.
	hmmTrainingWindow = 10

	// modelRefreshInterval is the wall-clock gap that triggers an
	// asynchronous update_models call from RecordAccess.
	modelRefreshInterval = 5 * time.Minute

	// similarityEdgeThreshold is the pairwise cosine-similarity cutoff
	// above which update_models creates/updates a semantic edge.
	similarityEdgeThreshold = 0.3
)

type recentQuery struct {
	path   string
	at     time.Time
	reason string
}

// Search is the per-container semantic index.
type Search struct {
	mu sync.RWMutex

	embedder embed.Embedder
	index    *vectorindex.Index
	graph    *graph.SemanticGraph
	hmm      *markov.HMM

	files map[string]*FileRecord

	recent           []recentQuery
	lastModelRefresh time.Time
}

// New constructs a Search bound to embedder, with a fresh index/graph/hmm.
func New(embedder embed.Embedder) *Search {
	return &Search{
		embedder: embedder,
		index:    vectorindex.New(vectorindex.Config{Dimensions: embedder.Dimensions(), Metric: vectorindex.MetricL2}),
		graph:    graph.New(),
		hmm:      markov.New(),
		files:    make(map[string]*FileRecord),
	}
}

// AddFile stores content, schedules an embedding update, marks the index
// dirty, and records access with reason "write".
func (s *Search) AddFile(ctx context.Context, path string, content []byte) error {
	s.mu.Lock()
	if _, exists := s.files[path]; exists {
		s.mu.Unlock()
		return verrors.AlreadyExists("file already exists: " + path)
	}
	now := time.Now()
	rec := &FileRecord{Path: path, Content: content, Size: int64(len(content)), Ctime: now, Mtime: now, Atime: now}
	s.files[path] = rec
	s.mu.Unlock()

	if err := s.recomputeEmbedding(ctx, rec); err != nil {
		return err
	}
	s.index.MarkDirty()
	s.RecordAccess(path, "write")
	return nil
}

// RemoveFile erases content and derived artifacts, drops the path from
// the index, and updates the graph's relationships.
func (s *Search) RemoveFile(path string) error {
	s.mu.Lock()
	if _, exists := s.files[path]; !exists {
		s.mu.Unlock()
		return verrors.NotFound("file not found: " + path)
	}
	delete(s.files, path)
	s.mu.Unlock()

	s.index.Remove(path)
	s.graph.RemoveNode(path)
	return nil
}

// UpdateFile behaves like AddFile over an existing path, clearing
// EmbeddingFresh before the recompute.
func (s *Search) UpdateFile(ctx context.Context, path string, content []byte) error {
	s.mu.Lock()
	rec, exists := s.files[path]
	if !exists {
		s.mu.Unlock()
		return verrors.NotFound("file not found: " + path)
	}
	rec.Content = content
	rec.Size = int64(len(content))
	rec.Mtime = time.Now()
	rec.EmbeddingFresh = false
	s.mu.Unlock()

	if err := s.recomputeEmbedding(ctx, rec); err != nil {
		return err
	}
	s.index.MarkDirty()
	s.RecordAccess(path, "write")
	return nil
}

func (s *Search) recomputeEmbedding(ctx context.Context, rec *FileRecord) error {
	text := strings.ToLower(string(rec.Content))
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return verrors.Internal("embedding failed", err)
	}

	s.mu.Lock()
	rec.Vector = vec
	rec.EmbeddingFresh = true
	s.mu.Unlock()

	return s.index.Upsert(rec.Path, vec, nil)
}

// SemanticSearch normalizes and embeds query, triggers an index rebuild,
// and returns the top-k (path, distance) pairs.
func (s *Search) SemanticSearch(ctx context.Context, query string, k int) ([]vectorindex.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, verrors.InvalidArgument("query must not be empty")
	}
	if k < 0 {
		return nil, verrors.InvalidArgument("k must be non-negative")
	}

	vec, err := s.embedder.Embed(ctx, strings.ToLower(query))
	if err != nil {
		return nil, verrors.Internal("embedding failed", err)
	}

	s.index.Rebuild()
	return s.index.Search(vec, k)
}

// HybridResult is one ranked match after the importance-weighted rescore.
type HybridResult struct {
	Path     string
	Distance float32
}

// HybridSearch calls SemanticSearch(query, 2k), multiplies each result's
// distance by (1+importance(path)), resorts ascending, and truncates to k.
func (s *Search) HybridSearch(ctx context.Context, query string, k int) ([]HybridResult, error) {
	raw, err := s.SemanticSearch(ctx, query, 2*k)
	if err != nil {
		return nil, err
	}

	rescored := make([]HybridResult, len(raw))
	for i, r := range raw {
		importance := s.graph.Importance(r.Path)
		rescored[i] = HybridResult{Path: r.Path, Distance: r.Distance * float32(1+importance)}
	}
	sort.SliceStable(rescored, func(i, j int) bool {
		return rescored[i].Distance < rescored[j].Distance
	})
	if k < len(rescored) {
		rescored = rescored[:k]
	}
	return rescored, nil
}

// Recommendations returns graph.GetRecommendations(current, 3), falling
// back to predict_next(recent_queries, 3) when the graph has nothing.
func (s *Search) Recommendations(current string) []graph.Recommendation {
	recs := s.graph.GetRecommendations(current, 3)
	if len(recs) > 0 {
		return recs
	}

	preds := s.PredictNext(3)
	fallback := make([]graph.Recommendation, len(preds))
	for i, p := range preds {
		fallback[i] = graph.Recommendation{Path: p.Path, Score: p.Probability}
	}
	return fallback
}

// PredictNext delegates to hmm.PredictNext(recent_queries, k).
func (s *Search) PredictNext(k int) []markov.Prediction {
	s.mu.RLock()
	obs := make([]string, len(s.recent))
	for i, q := range s.recent {
		obs[i] = q.path
	}
	s.mu.RUnlock()
	return s.hmm.PredictNext(obs, k)
}

// UpdateModels recomputes semantic relationships from pairwise
// cosine-similarity between embeddings (creating/updating an edge above
// similarityEdgeThreshold with similarity as the weight), runs
// random-walk ranking, and trains the HMM on the paths in the
// recent-query deque.
func (s *Search) UpdateModels(_ context.Context) error {
	s.mu.RLock()
	records := make([]*FileRecord, 0, len(s.files))
	for _, rec := range s.files {
		if rec.EmbeddingFresh {
			records = append(records, rec)
		}
	}
	recentPaths := make([]string, len(s.recent))
	for i, q := range s.recent {
		recentPaths[i] = q.path
	}
	s.mu.RUnlock()

	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			sim := cosineSimilarity(records[i].Vector, records[j].Vector)
			if sim > similarityEdgeThreshold {
				s.graph.AddEdge(records[i].Path, records[j].Path, sim, 1)
				s.graph.AddEdge(records[j].Path, records[i].Path, sim, 1)
			}
		}
	}

	s.graph.RandomWalkRanking(1000, 50)

	if len(recentPaths) > 0 {
		s.hmm.Train([][]string{recentPaths})
	}

	s.mu.Lock()
	s.lastModelRefresh = time.Now()
	s.mu.Unlock()
	return nil
}

// RecordAccess forwards to the graph and appends to the bounded deque of
// recent queries; once >=10 recent entries exist, the tail-10 window is
// appended as an HMM training sequence. If >=5 wall-minutes have passed
// since the last model refresh, UpdateModels runs in a goroutine.
func (s *Search) RecordAccess(path, reason string) {
	now := time.Now()
	s.graph.RecordAccess(path, now)

	s.mu.Lock()
	s.recent = append(s.recent, recentQuery{path: path, at: now, reason: reason})
	if len(s.recent) > recentQueryCapacity {
		s.recent = s.recent[recentQueryEvictBatch:]
	}

	var trainingSeq []string
	if len(s.recent) >= hmmTrainingWindow {
		window := s.recent[len(s.recent)-hmmTrainingWindow:]
		trainingSeq = make([]string, len(window))
		for i, q := range window {
			trainingSeq[i] = q.path
		}
	}

	shouldRefresh := s.lastModelRefresh.IsZero() || now.Sub(s.lastModelRefresh) >= modelRefreshInterval
	s.mu.Unlock()

	if trainingSeq != nil {
		s.hmm.Train([][]string{trainingSeq})
	}
	if shouldRefresh {
		go func() { _ = s.UpdateModels(context.Background()) }()
	}
}

// RecentQueryCount returns the current length of the recent-query deque
// (test hook for the bound invariant).
func (s *Search) RecentQueryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recent)
}

// Graph exposes the underlying SemanticGraph for diagnostics (e.g. the
// /.debug and /.markov pseudo-paths).
func (s *Search) Graph() *graph.SemanticGraph { return s.graph }

// HMM exposes the underlying HMM for diagnostics.
func (s *Search) HMM() *markov.HMM { return s.hmm }

// FileCount returns the number of files currently stored.
func (s *Search) FileCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// File returns the stored record for path, if any.
func (s *Search) File(path string) (*FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[path]
	return rec, ok
}

// Files returns a snapshot of all stored paths.
func (s *Search) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
