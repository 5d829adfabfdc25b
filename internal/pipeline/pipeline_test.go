package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/vectorfs/internal/embed"
)

type recordingPublisher struct {
	mu    sync.Mutex
	items []Item
}

func (p *recordingPublisher) Publish(_ context.Context, item Item) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, item)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

type failingHandler struct{}

func (failingHandler) Name() string { return "failing" }
func (failingHandler) Handle(context.Context, Item) (Item, error) {
	return Item{}, errors.New("boom")
}
func (failingHandler) Await() {}

func TestPipeline_EmptyChainIsIdentity(t *testing.T) {
	p := New()
	defer p.Close()

	in := Item{Path: "/a.go", Text: "hello"}
	out, err := p.Process(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestPipeline_FullChain_EmbedsQuantizesCompressesPublishes(t *testing.T) {
	embedder := embed.NewStaticEmbedder(16)
	quantizer := NewQuantizerStage(16)
	quantizer.Train([][]float32{
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	})
	publisher := &recordingPublisher{}

	p := New(
		NewEmbedderStage(embedder),
		quantizer,
		NewCompressorStage(),
		NewIPCPublisherStage(publisher),
	)
	defer p.Close()

	out, err := p.Process(context.Background(), Item{Path: "/a.go", Text: "database connection pool"})
	require.NoError(t, err)
	assert.Len(t, out.Vector, 16)
	assert.Len(t, out.Code, 16)
	assert.NotEmpty(t, out.Encoded)
	assert.Equal(t, 1, publisher.count())
}

func TestPipeline_StageError_DropsItemAndSurfacesError(t *testing.T) {
	p := New(failingHandler{})
	defer p.Close()

	_, err := p.Process(context.Background(), Item{Path: "/a.go"})
	assert.Error(t, err)
}

func TestPipeline_QuantizerStage_PassesThroughUntrained(t *testing.T) {
	embedder := embed.NewStaticEmbedder(8)
	p := New(NewEmbedderStage(embedder), NewQuantizerStage(8))
	defer p.Close()

	out, err := p.Process(context.Background(), Item{Text: "x"})
	require.NoError(t, err)
	assert.Empty(t, out.Code)
}
