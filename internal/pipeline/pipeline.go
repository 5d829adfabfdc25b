// Package pipeline implements the typed linear handler chain spec.md
// §4.9 describes: Embedder -> Quantizer -> Compressor -> IPCPublisher,
// wired over per-handler channels so a handler's successor is notified
// after it emits rather than called synchronously under its lock.
//
// Grounded in the teacher's internal/async.BackgroundIndexer for the
// stop-channel/done-channel lifecycle shape, generalized from "one
// background job" to "one handler per pipeline stage", each stage
// notifying the next over its own channel the way
// original_source/core/pipeline/pipeline_handler.hpp's per-handler event
// bus does.
package pipeline

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/vectorfs/internal/verrors"
)

// Item is the carrier type threaded through every handler in the chain.
// Each stage reads the fields it needs and fills in the ones it produces;
// a handler whose declared input/output leaves fields it doesn't touch
// untouched.
type Item struct {
	Path    string
	Text    string
	Vector  []float32
	Code    []byte
	Encoded []byte
	Meta    map[string]string
}

// Handler is one pipeline stage. Handle must not block on anything other
// than its own work; Await is the serialization point a caller can use
// to wait for in-flight work on this handler to settle.
type Handler interface {
	Name() string
	Handle(ctx context.Context, in Item) (Item, error)
	Await()
}

// Pipeline is a linear chain of handlers wired at construction. An empty
// Pipeline is the identity function.
type Pipeline struct {
	stages []stage
}

type stage struct {
	handler Handler
	in      chan stageRequest
}

type stageRequest struct {
	ctx    context.Context
	item   Item
	result chan stageResult
}

type stageResult struct {
	item Item
	err  error
}

// New wires handlers into a chain in order. Wire-up never fails in this
// Go rendition since Item is the single carrier type every handler
// shares; the "rejected at wire-up" case from spec.md §4.9 is therefore
// a compile-time guarantee (every Handler implements the same
// interface) rather than a runtime check.
func New(handlers ...Handler) *Pipeline {
	p := &Pipeline{stages: make([]stage, len(handlers))}
	for i, h := range handlers {
		s := stage{handler: h, in: make(chan stageRequest)}
		p.stages[i] = s
		go s.run()
	}
	return p
}

func (s stage) run() {
	for req := range s.in {
		out, err := s.handler.Handle(req.ctx, req.item)
		req.result <- stageResult{item: out, err: err}
		close(req.result)
	}
}

// Process threads item through every stage in order. On any stage's
// error the item is dropped and the error is returned to the caller
// immediately; later stages never see it.
func (p *Pipeline) Process(ctx context.Context, item Item) (Item, error) {
	current := item
	for _, s := range p.stages {
		result := make(chan stageResult, 1)
		s.in <- stageRequest{ctx: ctx, item: current, result: result}
		out := <-result
		if out.err != nil {
			return Item{}, verrors.Wrap(verrors.KindInternal, fmt.Errorf("stage %s: %w", s.handler.Name(), out.err))
		}
		current = out.item
	}
	return current, nil
}

// Close tears down every stage's channel, the pipeline's wiring
// cleanup (spec.md §4.9: "deterministically on destruction").
func (p *Pipeline) Close() {
	for _, s := range p.stages {
		close(s.in)
	}
}

// AwaitAll calls Await on every handler in order, serializing downstream
// activity the way a caller observing "process call's completion" would.
func (p *Pipeline) AwaitAll() {
	for _, s := range p.stages {
		s.handler.Await()
	}
}
