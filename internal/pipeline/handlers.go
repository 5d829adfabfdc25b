package pipeline

import (
	"context"
	"sync"

	"github.com/Aman-CERP/vectorfs/internal/compress"
	"github.com/Aman-CERP/vectorfs/internal/embed"
	"github.com/Aman-CERP/vectorfs/internal/quant"
)

// EmbedderStage embeds Item.Text into Item.Vector.
type EmbedderStage struct {
	embedder embed.Embedder
	mu       sync.Mutex
}

func NewEmbedderStage(embedder embed.Embedder) *EmbedderStage {
	return &EmbedderStage{embedder: embedder}
}

func (s *EmbedderStage) Name() string { return "embedder" }

func (s *EmbedderStage) Handle(ctx context.Context, in Item) (Item, error) {
	vec, err := s.embedder.Embed(ctx, in.Text)
	if err != nil {
		return Item{}, err
	}
	in.Vector = vec
	return in, nil
}

func (s *EmbedderStage) Await() {
	s.mu.Lock()
	defer s.mu.Unlock()
}

// QuantizerStage scalar-quantizes Item.Vector into Item.Code. It must be
// trained (via Train) before use; untrained stages pass the item through
// unmodified, leaving Code empty.
type QuantizerStage struct {
	mu sync.Mutex
	sq *quant.ScalarQuantizer
}

func NewQuantizerStage(dim int) *QuantizerStage {
	return &QuantizerStage{sq: quant.NewScalarQuantizer(dim)}
}

// Train fits the scalar quantizer's per-dimension ranges from samples.
func (s *QuantizerStage) Train(samples [][]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sq.Train(samples)
}

func (s *QuantizerStage) Name() string { return "quantizer" }

func (s *QuantizerStage) Handle(_ context.Context, in Item) (Item, error) {
	s.mu.Lock()
	trained := s.sq.Trained()
	s.mu.Unlock()
	if !trained {
		return in, nil
	}

	code, err := s.sq.Quantize(in.Vector)
	if err != nil {
		return Item{}, err
	}
	in.Code = code
	return in, nil
}

func (s *QuantizerStage) Await() {
	s.mu.Lock()
	defer s.mu.Unlock()
}

// CompressorStage LZ4-compresses Item.Code (falling back to Item.Text
// when no quantized code is present) into Item.Encoded.
type CompressorStage struct{ mu sync.Mutex }

func NewCompressorStage() *CompressorStage { return &CompressorStage{} }

func (s *CompressorStage) Name() string { return "compressor" }

func (s *CompressorStage) Handle(_ context.Context, in Item) (Item, error) {
	payload := in.Code
	if len(payload) == 0 {
		payload = []byte(in.Text)
	}
	encoded, err := compress.Compress(payload)
	if err != nil {
		return Item{}, err
	}
	in.Encoded = encoded
	return in, nil
}

func (s *CompressorStage) Await() {
	s.mu.Lock()
	defer s.mu.Unlock()
}

// Publisher is the sink an IPCPublisherStage hands finished items to
// (the bus client in production, a recording stub in tests).
type Publisher interface {
	Publish(ctx context.Context, item Item) error
}

// IPCPublisherStage is the terminal stage: it hands the finished Item to
// a Publisher and passes it through unchanged.
type IPCPublisherStage struct {
	mu        sync.Mutex
	publisher Publisher
}

func NewIPCPublisherStage(publisher Publisher) *IPCPublisherStage {
	return &IPCPublisherStage{publisher: publisher}
}

func (s *IPCPublisherStage) Name() string { return "ipc_publisher" }

func (s *IPCPublisherStage) Handle(ctx context.Context, in Item) (Item, error) {
	if err := s.publisher.Publish(ctx, in); err != nil {
		return Item{}, err
	}
	return in, nil
}

func (s *IPCPublisherStage) Await() {
	s.mu.Lock()
	defer s.mu.Unlock()
}
