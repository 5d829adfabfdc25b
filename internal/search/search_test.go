package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/vectorfs/internal/embed"
)

func newTestSearch(t *testing.T) *Search {
	t.Helper()
	return New(embed.NewStaticEmbedder(32))
}

func TestSearch_AddFile_RefusesDuplicatePath(t *testing.T) {
	s := newTestSearch(t)
	ctx := context.Background()

	require.NoError(t, s.AddFile(ctx, "/a.go", []byte("package main")))
	err := s.AddFile(ctx, "/a.go", []byte("package main"))
	assert.Error(t, err)
}

func TestSearch_AddFile_MarksEmbeddingFresh(t *testing.T) {
	s := newTestSearch(t)
	ctx := context.Background()

	require.NoError(t, s.AddFile(ctx, "/a.go", []byte("func main() {}")))
	rec, ok := s.File("/a.go")
	require.True(t, ok)
	assert.True(t, rec.EmbeddingFresh)
	assert.Len(t, rec.Vector, 32)
}

func TestSearch_RemoveFile_DropsFromStoreAndGraph(t *testing.T) {
	s := newTestSearch(t)
	ctx := context.Background()
	require.NoError(t, s.AddFile(ctx, "/a.go", []byte("package main")))

	require.NoError(t, s.RemoveFile("/a.go"))
	_, ok := s.File("/a.go")
	assert.False(t, ok)

	err := s.RemoveFile("/a.go")
	assert.Error(t, err)
}

func TestSearch_UpdateFile_RecomputesEmbedding(t *testing.T) {
	s := newTestSearch(t)
	ctx := context.Background()
	require.NoError(t, s.AddFile(ctx, "/a.go", []byte("package main")))
	before, _ := s.File("/a.go")
	beforeVec := append([]float32{}, before.Vector...)

	require.NoError(t, s.UpdateFile(ctx, "/a.go", []byte("completely different content about databases")))
	after, _ := s.File("/a.go")
	assert.NotEqual(t, beforeVec, after.Vector)
	assert.True(t, after.EmbeddingFresh)
}

func TestSearch_UpdateFile_RefusesMissingPath(t *testing.T) {
	s := newTestSearch(t)
	err := s.UpdateFile(context.Background(), "/missing.go", []byte("x"))
	assert.Error(t, err)
}

func TestSearch_SemanticSearch_RefusesEmptyQuery(t *testing.T) {
	s := newTestSearch(t)
	_, err := s.SemanticSearch(context.Background(), "   ", 5)
	assert.Error(t, err)
}

func TestSearch_SemanticSearch_FindsSelfAsClosestMatch(t *testing.T) {
	s := newTestSearch(t)
	ctx := context.Background()
	require.NoError(t, s.AddFile(ctx, "/db.go", []byte("database connection pool manager")))
	require.NoError(t, s.AddFile(ctx, "/ui.go", []byte("render button click handler")))

	results, err := s.SemanticSearch(ctx, "database connection pool manager", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/db.go", results[0].Path)
}

func TestSearch_HybridSearch_TruncatesToK(t *testing.T) {
	s := newTestSearch(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AddFile(ctx, fmt.Sprintf("/f%d.go", i), []byte("shared vocabulary about networking sockets")))
	}

	results, err := s.HybridSearch(ctx, "networking sockets", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_Recommendations_FallsBackToPredictNextWhenGraphEmpty(t *testing.T) {
	s := newTestSearch(t)
	ctx := context.Background()
	require.NoError(t, s.AddFile(ctx, "/a.go", []byte("x")))

	recs := s.Recommendations("/a.go")
	assert.NotNil(t, recs)
}

func TestSearch_RecordAccess_BoundsRecentQueryDeque(t *testing.T) {
	s := newTestSearch(t)
	for i := 0; i < recentQueryCapacity+5; i++ {
		s.RecordAccess(fmt.Sprintf("/p%d", i), "read")
	}
	assert.LessOrEqual(t, s.RecentQueryCount(), recentQueryCapacity)
}

func TestSearch_UpdateModels_SucceedsForSimilarFiles(t *testing.T) {
	s := newTestSearch(t)
	ctx := context.Background()
	require.NoError(t, s.AddFile(ctx, "/a.go", []byte("database connection pool manager retry logic")))
	require.NoError(t, s.AddFile(ctx, "/b.go", []byte("database connection pool manager retry logic handler")))

	require.NoError(t, s.UpdateModels(ctx))
	assert.GreaterOrEqual(t, s.Graph().NodeCount(), 0)
}

func TestSearch_PredictNext_EmptyWithoutTraining(t *testing.T) {
	s := newTestSearch(t)
	preds := s.PredictNext(3)
	assert.Empty(t, preds)
}

func TestSearch_Files_ReturnsSortedSnapshot(t *testing.T) {
	s := newTestSearch(t)
	ctx := context.Background()
	require.NoError(t, s.AddFile(ctx, "/z.go", []byte("z")))
	require.NoError(t, s.AddFile(ctx, "/a.go", []byte("a")))

	files := s.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "/a.go", files[0])
	assert.Equal(t, "/z.go", files[1])
}
