// Package retrieval coordinates one hybrid retrieval: embed the query,
// search the vector index, expand the hits through the chunk graph and fuse
// both signals into a ranked candidate list.
package retrieval

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/siherrmann/lexgraph/core/fusion"
	"github.com/siherrmann/lexgraph/helper"
	"github.com/siherrmann/lexgraph/model"
)

// Retriever holds no per-request state and is safe for concurrent use as
// long as its providers are.
type Retriever struct {
	embedder EmbeddingProvider
	vectors  VectorSearchProvider
	graph    GraphTraversalProvider
	config   model.RetrievalConfig
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithConfig replaces model.DefaultRetrievalConfig.
func WithConfig(config model.RetrievalConfig) Option {
	return func(r *Retriever) error {
		if err := config.Validate(); err != nil {
			return err
		}
		r.config = config
		return nil
	}
}

// NewRetriever creates a retriever over the given providers.
func NewRetriever(
	embedder EmbeddingProvider,
	vectors VectorSearchProvider,
	graph GraphTraversalProvider,
	opts ...Option,
) (*Retriever, error) {
	if embedder == nil {
		return nil, ErrEmbeddingProviderRequired
	}
	if vectors == nil {
		return nil, ErrVectorSearchProviderRequired
	}
	if graph == nil {
		return nil, ErrGraphProviderRequired
	}

	r := &Retriever{
		embedder: embedder,
		vectors:  vectors,
		graph:    graph,
		config:   model.DefaultRetrievalConfig(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Config returns the retriever's configuration.
func (r *Retriever) Config() model.RetrievalConfig {
	return r.config
}

type retrieveOptions struct {
	topK    int
	filters model.Filters
	graph   bool
	monitor Monitor
}

// RetrieveOption adjusts a single Retrieve call.
type RetrieveOption func(*retrieveOptions)

// WithTopK bounds the number of returned candidates.
func WithTopK(topK int) RetrieveOption {
	return func(o *retrieveOptions) {
		o.topK = topK
	}
}

// WithFilters restricts vector search by metadata. Repeated options are
// merged, a later value wins for the same key. A documentId filter also
// drops graph results of other documents.
func WithFilters(filters model.Filters) RetrieveOption {
	return func(o *retrieveOptions) {
		merged := make(model.Filters, len(o.filters)+len(filters))
		for key, value := range o.filters {
			merged[key] = value
		}
		for key, value := range filters {
			merged[key] = value
		}
		o.filters = merged
	}
}

// WithGraph enables or disables graph expansion. Enabled by default.
func WithGraph(enabled bool) RetrieveOption {
	return func(o *retrieveOptions) {
		o.graph = enabled
	}
}

// WithMonitor observes the stages of the call.
func WithMonitor(monitor Monitor) RetrieveOption {
	return func(o *retrieveOptions) {
		if monitor != nil {
			o.monitor = monitor
		}
	}
}

// Retrieve returns at most topK diverse candidates for query, best first.
//
// Vector search is asked for Oversample*topK hits. If it finds nothing the
// result is empty and the graph is not queried. Otherwise every hit seeds
// the graph traversal and both lists are fused.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...RetrieveOption) (results []*model.Candidate, err error) {
	o := retrieveOptions{
		topK:    r.config.TopK,
		graph:   true,
		monitor: noopMonitor{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := r.validate(query, o); err != nil {
		return nil, err
	}

	o.monitor.Start(query)
	defer func() { o.monitor.End(results, err) }()

	start := time.Now()

	vectorResults, err := r.searchVectors(ctx, query, o)
	if err != nil {
		return nil, err
	}
	seeds := model.CandidateIDs(vectorResults)
	o.monitor.AfterVectorSearch(seeds)

	if len(vectorResults) == 0 {
		r.logger.Debug("Vector search returned no candidates", slog.Int("top_k", o.topK))
		return []*model.Candidate{}, nil
	}

	var graphResults []*model.Candidate
	if o.graph {
		graphResults, err = r.expandGraph(ctx, seeds)
		if err != nil {
			return nil, err
		}
		graphResults = r.restrictToDocuments(graphResults, o.filters.DocumentRIDs())
		o.monitor.AfterGraphTraversal(model.CandidateIDs(graphResults))
	}

	results = fusion.Fuse(
		vectorResults,
		graphResults,
		o.topK,
		r.config.VectorWeight,
		r.config.GraphWeight,
		r.config.DiversityThreshold,
	)

	r.logger.Debug(
		"Retrieved candidates",
		slog.Int("vector", len(vectorResults)),
		slog.Int("graph", len(graphResults)),
		slog.Int("fused", len(results)),
		slog.Duration("took", time.Since(start)),
	)

	return results, nil
}

func (r *Retriever) validate(query string, o retrieveOptions) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return invalidInput("query is empty")
	}
	if utf8.RuneCountInString(trimmed) < r.config.MinQueryLength {
		return invalidInput("query shorter than %d characters", r.config.MinQueryLength)
	}
	if o.topK < 1 {
		return invalidInput("top k must be at least 1, got %d", o.topK)
	}
	if err := o.filters.Validate(); err != nil {
		return invalidInput("%v", err)
	}
	return nil
}

func (r *Retriever) searchVectors(ctx context.Context, query string, o retrieveOptions) ([]*model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, &RetrievalFailure{Stage: StageVector, Err: err}
	}
	vector, err := r.embedder.EncodeQuery(ctx, query)
	if err != nil {
		return nil, &RetrievalFailure{Stage: StageVector, Err: helper.NewError("encode query", err)}
	}

	if err := ctx.Err(); err != nil {
		return nil, &RetrievalFailure{Stage: StageVector, Err: err}
	}
	hits, err := r.vectors.Search(ctx, vector, o.topK*r.config.Oversample, o.filters)
	if err != nil {
		return nil, &RetrievalFailure{Stage: StageVector, Err: helper.NewError("search", err)}
	}

	candidates := make([]*model.Candidate, 0, len(hits))
	for _, hit := range hits {
		if hit == nil {
			continue
		}
		candidates = append(candidates, hit.ToCandidate())
	}
	return candidates, nil
}

// expandGraph returns nil results without error when traversal failed and
// the degrade policy is configured. A cancelled context always fails.
func (r *Retriever) expandGraph(ctx context.Context, seeds []string) ([]*model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, &RetrievalFailure{Stage: StageGraph, Err: err}
	}

	hits, err := r.graph.FindRelated(ctx, seeds, r.config.MaxDepth, r.config.MaxGraphResults)
	if err != nil {
		failure := &RetrievalFailure{Stage: StageGraph, Err: err}
		if r.config.GraphFailure == model.GraphFailureDegrade && ctx.Err() == nil {
			r.logger.Warn("Graph traversal failed, using vector results only", slog.Any("error", failure))
			return nil, nil
		}
		return nil, failure
	}

	candidates := make([]*model.Candidate, 0, len(hits))
	for _, hit := range hits {
		if hit == nil {
			continue
		}
		candidates = append(candidates, hit.ToCandidate())
	}
	return candidates, nil
}

// restrictToDocuments keeps the candidates of the given documents, all of
// them if no document is given. Metadata filters only apply to vector search.
func (r *Retriever) restrictToDocuments(candidates []*model.Candidate, documentRIDs []uuid.UUID) []*model.Candidate {
	if len(documentRIDs) == 0 {
		return candidates
	}

	allowed := make(map[uuid.UUID]bool, len(documentRIDs))
	for _, rid := range documentRIDs {
		allowed[rid] = true
	}

	kept := make([]*model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		rid, err := uuid.Parse(c.ParentDocumentID)
		if err != nil || !allowed[rid] {
			continue
		}
		kept = append(kept, c)
	}

	if dropped := len(candidates) - len(kept); dropped > 0 {
		r.logger.Debug("Dropped graph candidates outside the document scope", slog.Int("dropped", dropped))
	}
	return kept
}
