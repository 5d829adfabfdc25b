// Package embed provides the Embedder contract (spec.md §4.1) and the
// concrete embedders vectorfs ships with: a dependency-free hash embedder
// and an HTTP-backed remote embedder consuming an external model as a
// pure text→vector function.
package embed

import (
	"context"
	"math"
	"time"
)

// Batch and timeout constants, grounded in the teacher's
// internal/embed/types.go, trimmed to what a single remote HTTP embedder
// actually needs (the teacher's thermal-throttling progression constants
// are Apple-Silicon-specific and have no home in this spec).
const (
	MinBatchSize     = 1
	MaxBatchSize     = 256
	DefaultBatchSize = 32

	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
)

// DefaultDimensions is the embedding width used when no model-specific
// dimension is configured. It must match whatever the container's
// embedder actually produces; see ErrDimensionMismatch in vectorindex.
const DefaultDimensions = 256

// Embedder maps text to a fixed-dimension vector. Per spec.md §4.1 it is
// pure and thread-safe for a loaded model; dim is constant after
// construction. Model-not-loaded is fatal to construction; inference of
// non-empty input does not fail.
type Embedder interface {
	// Embed generates the embedding for a single (already lowercased) text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one round trip.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension, constant after load.
	Dimensions() int

	// ModelName returns the model identifier, used for cache keys and
	// dimension-mismatch diagnostics.
	ModelName() string

	// Available reports whether the embedder is currently ready to serve.
	Available(ctx context.Context) bool

	// Close releases resources held by the embedder.
	Close() error
}

// normalizeVector scales v to unit length; zero vectors pass through
// unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
