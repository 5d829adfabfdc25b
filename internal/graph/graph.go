// Package graph implements the weighted directed SemanticGraph spec.md
// §4.4 describes: edge-weight normalization, temporal edges derived from
// an access stream, random-walk node importance, neighbor
// recommendations, and semantic-hub detection. It is grounded in
// _examples/original_source/domain/markov.hpp's SemanticGraph class,
// translated into idiomatic Go rather than line-by-line: explicit
// sync.RWMutex instead of the original's internal locking, Go maps
// instead of hash tables, and a teleporting random walk expressed without
// the original's raw C arrays.
package graph

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// accessWindow bounds how many recent accesses are scanned when deriving
// temporal edges (markov.hpp's 10-element sliding window).
const accessWindow = 10

// temporalEdgeThreshold is the time delta beyond which two accesses are
// not considered temporally related.
const temporalEdgeThreshold = 300 * time.Second

// edge holds the weighted, scored relationship from one node to another.
type edge struct {
	weight     float64
	similarity float64
	usageCount int
}

// access records one (path, time) observation used to derive temporal
// edges and feed the bounded access-history deque (spec.md §3).
type access struct {
	path string
	at   time.Time
}

// SemanticGraph is a weighted directed multigraph over file paths.
type SemanticGraph struct {
	mu sync.RWMutex

	// out[src][dst] = edge. Outgoing weights from any node sum to 1 after
	// every insertion (spec.md §4.4 invariant).
	out map[string]map[string]*edge
	// in degree tracking for hub scoring.
	inDegree map[string]int

	importance map[string]float64

	history []access

	rng *rand.Rand
}

// New constructs an empty SemanticGraph.
func New() *SemanticGraph {
	return &SemanticGraph{
		out:        make(map[string]map[string]*edge),
		inDegree:   make(map[string]int),
		importance: make(map[string]float64),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *SemanticGraph) ensureNodeLocked(path string) {
	if _, ok := g.out[path]; !ok {
		g.out[path] = make(map[string]*edge)
	}
}

// AddEdge inserts or updates the edge src->dst. If the edge exists, the
// new weight is the arithmetic mean of the existing weight and
// similarity*(1+ln(usage)), similarity becomes the max of the two, and
// usage counts sum. Outgoing weights of src are renormalized afterward.
func (g *SemanticGraph) AddEdge(src, dst string, similarity float64, usage int) {
	if usage <= 0 {
		usage = 1
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ensureNodeLocked(src)
	g.ensureNodeLocked(dst)

	contribution := similarity * (1 + math.Log(float64(usage)))

	e, exists := g.out[src][dst]
	if !exists {
		g.out[src][dst] = &edge{weight: contribution, similarity: similarity, usageCount: usage}
		g.inDegree[dst]++
	} else {
		e.weight = (e.weight + contribution) / 2
		if similarity > e.similarity {
			e.similarity = similarity
		}
		e.usageCount += usage
	}

	g.renormalizeOutgoingLocked(src)
}

// renormalizeOutgoingLocked scales src's outgoing weights to sum to 1.
func (g *SemanticGraph) renormalizeOutgoingLocked(src string) {
	edges := g.out[src]
	if len(edges) == 0 {
		return
	}
	var total float64
	for _, e := range edges {
		total += e.weight
	}
	if total == 0 {
		return
	}
	for _, e := range edges {
		e.weight /= total
	}
}

// RecordAccess appends path to the bounded access history and derives
// temporal edges from the trailing window of recent accesses.
func (g *SemanticGraph) RecordAccess(path string, at time.Time) {
	g.mu.Lock()
	g.history = append(g.history, access{path: path, at: at})
	if len(g.history) > 1000 {
		g.history = g.history[100:]
	}

	start := len(g.history) - accessWindow
	if start < 0 {
		start = 0
	}
	window := append([]access(nil), g.history[start:]...)
	g.mu.Unlock()

	for i := 0; i+1 < len(window); i++ {
		delta := window[i+1].at.Sub(window[i].at)
		if delta < 0 {
			delta = -delta
		}
		if delta >= temporalEdgeThreshold {
			continue
		}
		temporal := 1.0 / (1.0 + delta.Seconds()/60.0)
		usage := int(math.Ceil(10 * temporal))
		g.AddEdge(window[i].path, window[i+1].path, 0.5, usage)
	}
}

// HistoryLen returns the current length of the access deque (test hook
// for the access-history-bound invariant, spec.md §8 property 7).
func (g *SemanticGraph) HistoryLen() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.history)
}

// RandomWalkRanking runs numWalks walks of length walkLength each,
// starting from a uniformly random node and sampling outgoing edges by
// normalized weight (teleporting uniformly from dead ends). Importance of
// a node is its visit fraction across all walks; results are stored in
// the node-importance map.
func (g *SemanticGraph) RandomWalkRanking(numWalks, walkLength int) {
	g.mu.Lock()
	nodes := make([]string, 0, len(g.out))
	for n := range g.out {
		nodes = append(nodes, n)
	}
	if len(nodes) == 0 {
		g.mu.Unlock()
		return
	}
	// Snapshot outgoing weights so a walk observes a consistent view,
	// matching spec.md §5's ordering guarantee for SemanticGraph.
	snapshot := make(map[string][]walkEdge, len(g.out))
	for n, edges := range g.out {
		list := make([]walkEdge, 0, len(edges))
		for dst, e := range edges {
			list = append(list, walkEdge{dst: dst, weight: e.weight})
		}
		snapshot[n] = list
	}
	g.mu.Unlock()

	visits := make(map[string]int, len(nodes))
	for w := 0; w < numWalks; w++ {
		current := nodes[g.rng.Intn(len(nodes))]
		for step := 0; step < walkLength; step++ {
			visits[current]++
			next, ok := sampleNext(snapshot[current], g.rng)
			if !ok {
				current = nodes[g.rng.Intn(len(nodes))]
				continue
			}
			current = next
		}
	}

	total := float64(numWalks * walkLength)
	importance := make(map[string]float64, len(visits))
	for n, count := range visits {
		importance[n] = float64(count) / total
	}

	g.mu.Lock()
	g.importance = importance
	g.mu.Unlock()
}

type walkEdge struct {
	dst    string
	weight float64
}

func sampleNext(edges []walkEdge, rng *rand.Rand) (string, bool) {
	if len(edges) == 0 {
		return "", false
	}
	r := rng.Float64()
	var cumulative float64
	for _, e := range edges {
		cumulative += e.weight
		if r <= cumulative {
			return e.dst, true
		}
	}
	return edges[len(edges)-1].dst, true
}

// Importance returns the node-importance value for path, or 0 if the node
// has never been visited by a random walk.
func (g *SemanticGraph) Importance(path string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.importance[path]
}

// Recommendation is one scored neighbor suggestion.
type Recommendation struct {
	Path  string
	Score float64
}

// GetRecommendations scores path's outgoing neighbors as
// weight*(1+importance)*(1+similarity) and returns the top-k.
func (g *SemanticGraph) GetRecommendations(path string, k int) []Recommendation {
	g.mu.RLock()
	edges := g.out[path]
	recs := make([]Recommendation, 0, len(edges))
	for dst, e := range edges {
		score := e.weight * (1 + g.importance[dst]) * (1 + e.similarity)
		recs = append(recs, Recommendation{Path: dst, Score: score})
	}
	g.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Path < recs[j].Path
	})
	if k < len(recs) {
		recs = recs[:k]
	}
	return recs
}

// Hub is one scored semantic-hub candidate.
type Hub struct {
	Path  string
	Score float64
}

// GetSemanticHubs scores nodes by (in_degree+out_degree)*avg_outgoing_similarity*(1+importance)
// and returns the top-k.
func (g *SemanticGraph) GetSemanticHubs(k int) []Hub {
	g.mu.RLock()
	defer g.mu.RUnlock()

	hubs := make([]Hub, 0, len(g.out))
	for node, edges := range g.out {
		outDegree := len(edges)
		var simSum float64
		for _, e := range edges {
			simSum += e.similarity
		}
		avgSim := 0.0
		if outDegree > 0 {
			avgSim = simSum / float64(outDegree)
		}
		degree := outDegree + g.inDegree[node]
		score := float64(degree) * avgSim * (1 + g.importance[node])
		hubs = append(hubs, Hub{Path: node, Score: score})
	}

	sort.Slice(hubs, func(i, j int) bool {
		if hubs[i].Score != hubs[j].Score {
			return hubs[i].Score > hubs[j].Score
		}
		return hubs[i].Path < hubs[j].Path
	})
	if k < len(hubs) {
		hubs = hubs[:k]
	}
	return hubs
}

// GetTransitionProbability returns the normalized outgoing weight from
// src to dst, or 0 if no such edge exists. Supplemented from
// markov.hpp::get_transition_probability (not named in spec.md).
func (g *SemanticGraph) GetTransitionProbability(src, dst string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	edges, ok := g.out[src]
	if !ok {
		return 0
	}
	e, ok := edges[dst]
	if !ok {
		return 0
	}
	return e.weight
}

// NodeCount returns the number of distinct nodes in the graph.
func (g *SemanticGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.out)
}

// EdgeCount returns the total number of directed edges in the graph.
func (g *SemanticGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, edges := range g.out {
		n += len(edges)
	}
	return n
}

// RemoveNode drops a node and all edges referencing it, used when a file
// is removed from its container (spec.md §4.6 remove_file's "graph's
// relationship update").
func (g *SemanticGraph) RemoveNode(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.out, path)
	delete(g.importance, path)
	delete(g.inDegree, path)
	for _, edges := range g.out {
		if _, ok := edges[path]; ok {
			delete(edges, path)
		}
	}
}
