package search

import "time"

// FileRecord is one file inside a container's data directory, identified
// by a POSIX-style virtual path unique inside its container. It lives in
// this package (rather than internal/container, as SPEC_FULL.md's data
// model section names it) because Search is the component that actually
// owns the file store (spec.md §4.6); internal/container re-exports it as
// container.FileRecord to keep the public name the spec uses, without
// creating an import cycle between container and search.
type FileRecord struct {
	Path    string
	Content []byte

	Mode  uint32
	UID   uint32
	GID   uint32
	Size  int64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time

	// Vector is the dense embedding, dimension == Embedder.Dimensions().
	Vector []float32
	// SQCode is the optional scalar-quantizer code, one byte per dimension.
	SQCode []byte
	// PQCode is the optional product-quantizer code, M bytes.
	PQCode []byte

	// EmbeddingFresh marks whether Vector/SQCode/PQCode match Content.
	// Invariant (spec.md §3): EmbeddingFresh==true implies
	// len(Vector)==Embedder.Dimensions().
	EmbeddingFresh bool
}

// MatchesDimension reports whether the record's invariant holds for a
// given embedder dimension.
func (f *FileRecord) MatchesDimension(dim int) bool {
	if !f.EmbeddingFresh {
		return true
	}
	return len(f.Vector) == dim
}
