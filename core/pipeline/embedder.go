// Package pipeline provides the embedding providers used for queries and
// passages.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/lexgraph/helper"
)

// E5 style models are trained with these input prefixes.
const (
	QueryPrefix   = "query: "
	PassagePrefix = "passage: "
)

// BatchEmbedFunc embeds texts in one call and returns one vector per text,
// in input order.
type BatchEmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Embedder prefixes inputs for query or passage mode and checks that every
// vector has the configured dimension.
type Embedder struct {
	embed         BatchEmbedFunc
	dimension     int
	queryPrefix   string
	passagePrefix string
	close         func() error
	logger        *slog.Logger
}

// Option configures an Embedder.
type Option func(*Embedder) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Embedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithPrefixes overrides the E5 prefixes for models trained without them.
func WithPrefixes(query, passage string) Option {
	return func(e *Embedder) error {
		e.queryPrefix = query
		e.passagePrefix = passage
		return nil
	}
}

// NewEmbedder wraps embed. dimension must match the vector index.
func NewEmbedder(embed BatchEmbedFunc, dimension int, opts ...Option) (*Embedder, error) {
	if embed == nil {
		return nil, helper.NewError("embedder validation", fmt.Errorf("embed function is nil"))
	}
	if dimension < 1 {
		return nil, helper.NewError("embedder validation", fmt.Errorf("dimension must be at least 1, got %d", dimension))
	}

	e := &Embedder{
		embed:         embed,
		dimension:     dimension,
		queryPrefix:   QueryPrefix,
		passagePrefix: PassagePrefix,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Dimension returns the vector length produced by the embedder.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// EncodeQuery embeds a search query.
func (e *Embedder) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.run(ctx, []string{e.queryPrefix + text})
	if err != nil {
		return nil, helper.NewError("encode query", err)
	}
	return vectors[0], nil
}

// EncodePassages embeds passages for indexing.
func (e *Embedder) EncodePassages(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	prefixed := make([]string, len(texts))
	for i, text := range texts {
		prefixed[i] = e.passagePrefix + text
	}

	vectors, err := e.run(ctx, prefixed)
	if err != nil {
		return nil, helper.NewError("encode passages", err)
	}
	return vectors, nil
}

// Close releases the underlying model, if any.
func (e *Embedder) Close() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}

func (e *Embedder) run(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vectors, err := e.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != e.dimension {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), e.dimension)
		}
	}

	e.logger.Debug("Generated embeddings", slog.Int("count", len(vectors)))

	return vectors, nil
}
