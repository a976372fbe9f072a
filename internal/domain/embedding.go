package domain

import (
	"context"
	"fmt"
	"sync"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// LazyEmbedder defers construction of the underlying provider until the first
// Embed call. Construction runs exactly once even under concurrent first use;
// once built, the inner embedder is assumed safe for concurrent calls.
type LazyEmbedder struct {
	build func() (Embedder, error)

	once  sync.Once
	inner Embedder
	err   error
}

// NewLazyEmbedder wraps a constructor in a once-guarded lazy embedder.
func NewLazyEmbedder(build func() (Embedder, error)) *LazyEmbedder {
	return &LazyEmbedder{build: build}
}

// Embed constructs the inner embedder on first use and delegates to it.
func (e *LazyEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	e.once.Do(func() {
		e.inner, e.err = e.build()
	})
	if e.err != nil {
		return EmbeddingResult{}, fmt.Errorf("construct embedder: %w", e.err)
	}
	return e.inner.Embed(ctx, text)
}
