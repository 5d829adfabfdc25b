// Package markov implements the discrete HMM spec.md §4.5 describes:
// states are derived file categories, observations are paths, and
// training tallies transition/emission counts across access sequences
// before row-normalizing. It is grounded in the state/observation/matrix
// structure of _examples/original_source/domain/markov.hpp, but that file
// only implements a graph-based recommender, not a forward-inference HMM
// — the inference and classification operations here are built directly
// from spec.md §4.5's algorithm description, documented as an Open
// Question resolution in DESIGN.md.
package markov

import (
	"path/filepath"
	"strings"
	"sync"
)

// State is a derived file category.
type State string

const (
	StateCode     State = "code"
	StateDocument State = "document"
	StateConfig   State = "config"
	StateScript   State = "script"
	StateTest     State = "test"
	StateMisc     State = "misc"
)

// allStates enumerates S in a fixed order so matrix rows/columns are
// deterministic.
var allStates = []State{StateCode, StateDocument, StateConfig, StateScript, StateTest, StateMisc}

// ClassifyPath is the deterministic state-inference helper spec.md §6
// describes: extension-based first, then path-keyword overrides, falling
// back to misc.
func ClassifyPath(path string) State {
	lower := strings.ToLower(path)

	if strings.Contains(lower, "/test/") || strings.Contains(lower, "_test.") {
		return StateTest
	}
	if strings.Contains(lower, "/doc/") {
		return StateDocument
	}
	if strings.Contains(lower, "config") || strings.Contains(lower, "conf") {
		return StateConfig
	}

	switch strings.ToLower(filepath.Ext(lower)) {
	case ".cpp", ".hpp", ".c", ".h":
		return StateCode
	case ".txt", ".md", ".doc":
		return StateDocument
	case ".json", ".xml", ".yaml", ".yml":
		return StateConfig
	case ".py", ".js", ".java":
		return StateScript
	}
	return StateMisc
}

// HMM is a discrete hidden Markov model over file categories with
// file-path observations.
type HMM struct {
	mu sync.RWMutex

	// A[state][state] = transition probability.
	a map[State]map[State]float64
	// B[state][observation] = emission probability.
	b map[State]map[string]float64
	// pi[state] = initial state probability.
	pi map[State]float64

	trained bool
}

// New constructs an untrained HMM with a uniform initial distribution.
func New() *HMM {
	h := &HMM{
		a:  make(map[State]map[State]float64),
		b:  make(map[State]map[string]float64),
		pi: make(map[State]float64),
	}
	for _, s := range allStates {
		h.pi[s] = 1.0 / float64(len(allStates))
		h.a[s] = make(map[State]float64)
		h.b[s] = make(map[string]float64)
	}
	return h
}

// Train tallies transition and emission counts across sequences of
// observed paths, then row-normalizes A and B. Zero-initialized entries
// stay zero until a training sequence touches them (spec.md §3
// invariant).
func (h *HMM) Train(sequences [][]string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	transCounts := make(map[State]map[State]float64)
	emitCounts := make(map[State]map[string]float64)
	for _, s := range allStates {
		transCounts[s] = make(map[State]float64)
		emitCounts[s] = make(map[string]float64)
	}

	for _, seq := range sequences {
		var prevState State
		havePrev := false
		for _, path := range seq {
			state := ClassifyPath(path)
			emitCounts[state][path]++
			if havePrev {
				transCounts[prevState][state]++
			}
			prevState = state
			havePrev = true
		}
	}

	for _, s := range allStates {
		rowTotal := 0.0
		for _, c := range transCounts[s] {
			rowTotal += c
		}
		if rowTotal > 0 {
			for dst, c := range transCounts[s] {
				h.a[s][dst] = c / rowTotal
			}
		}

		emitTotal := 0.0
		for _, c := range emitCounts[s] {
			emitTotal += c
		}
		if emitTotal > 0 {
			for obs, c := range emitCounts[s] {
				h.b[s][obs] = c / emitTotal
			}
		}
	}

	h.trained = true
}

// Trained reports whether Train has tallied at least one sequence.
func (h *HMM) Trained() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.trained
}

// ForwardProbs propagates pi through A and B across the observation
// sequence, returning the final posterior over states. An untrained HMM
// predicts nothing (spec.md §4.5): this returns the uniform
// distribution.
func (h *HMM) ForwardProbs(obs []string) map[State]float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	posterior := make(map[State]float64, len(allStates))
	for _, s := range allStates {
		posterior[s] = h.pi[s]
	}
	if !h.trained || len(obs) == 0 {
		return posterior
	}

	for _, o := range obs {
		next := make(map[State]float64, len(allStates))
		var total float64
		for _, s := range allStates {
			var fromPrev float64
			for _, prev := range allStates {
				fromPrev += posterior[prev] * h.a[prev][s]
			}
			emission := h.b[s][o]
			next[s] = fromPrev * emission
			total += next[s]
		}
		if total > 0 {
			for _, s := range allStates {
				next[s] /= total
			}
		}
		posterior = next
	}
	return posterior
}

// Prediction is one scored next-observation candidate.
type Prediction struct {
	Path        string
	Probability float64
}

// PredictNext advances the forward posterior P(state|obs) one step
// through A to get the next-state distribution, then scores every
// observation o as sum over states of P(next state) * B[state][o],
// returning the top-k observations with probability above 0.01. If the
// posterior has no outgoing transition mass, the posterior itself is used.
func (h *HMM) PredictNext(obs []string, k int) []Prediction {
	posterior := h.ForwardProbs(obs)

	h.mu.RLock()
	defer h.mu.RUnlock()

	nextState := make(map[State]float64, len(allStates))
	var mass float64
	for _, s := range allStates {
		for _, prev := range allStates {
			nextState[s] += posterior[prev] * h.a[prev][s]
		}
		mass += nextState[s]
	}
	if mass == 0 {
		nextState = posterior
	}

	scores := make(map[string]float64)
	for _, s := range allStates {
		for o, emission := range h.b[s] {
			scores[o] += nextState[s] * emission
		}
	}

	preds := make([]Prediction, 0, len(scores))
	for o, p := range scores {
		if p > 0.01 {
			preds = append(preds, Prediction{Path: o, Probability: p})
		}
	}
	sortPredictions(preds)
	if k < len(preds) {
		preds = preds[:k]
	}
	return preds
}

func sortPredictions(preds []Prediction) {
	for i := 1; i < len(preds); i++ {
		for j := i; j > 0 && preds[j].Probability > preds[j-1].Probability; j-- {
			preds[j], preds[j-1] = preds[j-1], preds[j]
		}
	}
}

// Classify returns the state maximizing P(state|contextObs)*B[state][obs_of(path)],
// falling back to the argmax of P(state|contextObs) if path was never
// observed during training. Uses the last-step posterior, not full
// forward-backward smoothing (spec.md §9 open question: "source uses the
// latter").
func (h *HMM) Classify(path string, contextObs []string) State {
	posterior := h.ForwardProbs(contextObs)

	h.mu.RLock()
	defer h.mu.RUnlock()

	observed := false
	for _, s := range allStates {
		if _, ok := h.b[s][path]; ok {
			observed = true
			break
		}
	}

	best := allStates[0]
	bestScore := -1.0
	for _, s := range allStates {
		var score float64
		if observed {
			score = posterior[s] * h.b[s][path]
		} else {
			score = posterior[s]
		}
		if score > bestScore {
			bestScore = score
			best = s
		}
	}
	return best
}
