// Package lexgraph wires the storage, embedding and retrieval packages into
// one hybrid vector and graph retrieval engine for legal documents.
package lexgraph

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/siherrmann/lexgraph/core/answer"
	"github.com/siherrmann/lexgraph/core/graph"
	"github.com/siherrmann/lexgraph/core/ingest"
	"github.com/siherrmann/lexgraph/core/retrieval"
	"github.com/siherrmann/lexgraph/database"
	"github.com/siherrmann/lexgraph/helper"
	"github.com/siherrmann/lexgraph/model"
	loadSql "github.com/siherrmann/lexgraph/sql"
	"github.com/tmc/langchaingo/llms"
)

// Embedder is an embedding provider with a fixed dimension, such as
// *pipeline.Embedder.
type Embedder interface {
	retrieval.EmbeddingProvider
	Dimension() int
}

// Lexgraph provides a unified interface to all database handlers and the
// retriever built on them.
type Lexgraph struct {
	DB        *helper.Database
	Documents *database.DocumentsDBHandler
	Chunks    *database.ChunksDBHandler
	Edges     *database.EdgesDBHandler
	Retriever *retrieval.Retriever
	Indexer   *ingest.Indexer
	graph     *database.GraphStore
	// Logging
	log *slog.Logger
}

type options struct {
	logger         *slog.Logger
	inProcessGraph bool
	batchSize      int
	poolSize       int
	detectRefs     bool
}

// Option configures NewLexgraph.
type Option func(*options)

// WithLogger sets the logger of every component.
// Default is a pretty printing logger on stdout at info level.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithInProcessGraph expands the graph with the in-process traverser over
// single edge queries instead of the recursive database query.
func WithInProcessGraph() Option {
	return func(o *options) {
		o.inProcessGraph = true
	}
}

// WithIngestion sets batch size and pool size of the indexer.
func WithIngestion(batchSize int, poolSize int) Option {
	return func(o *options) {
		o.batchSize = batchSize
		o.poolSize = poolSize
	}
}

// WithReferenceDetection makes ingestion link article citations found in
// chunk text.
func WithReferenceDetection() Option {
	return func(o *options) {
		o.detectRefs = true
	}
}

// NewLexgraph connects to the database, creates all tables and functions and
// wires the retriever and indexer around embedder.
func NewLexgraph(config *helper.DatabaseConfiguration, retrievalConfig model.RetrievalConfig, embedder Embedder, opts ...Option) (*Lexgraph, error) {
	o := options{batchSize: ingest.DefaultBatchSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(helper.NewPrettyHandler(os.Stdout, helper.PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{
				Level: slog.LevelInfo,
			},
		}))
	}
	logger := o.logger

	if embedder == nil {
		return nil, retrieval.ErrEmbeddingProviderRequired
	}
	if err := retrievalConfig.Validate(); err != nil {
		return nil, helper.NewError("retrieval config", err)
	}

	db, err := helper.NewDatabase("lexgraph", config, logger)
	if err != nil {
		return nil, helper.NewError("connect database", err)
	}

	g, err := newLexgraph(db, retrievalConfig, embedder, o)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return g, nil
}

func newLexgraph(db *helper.Database, retrievalConfig model.RetrievalConfig, embedder Embedder, o options) (*Lexgraph, error) {
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Documents first, chunks and edges reference them.
	documents, err := database.NewDocumentsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}

	chunks, err := database.NewChunksDBHandler(db, embedder.Dimension(), false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	edges, err := database.NewEdgesDBHandler(db, false, retrievalConfig.EdgeTypes...)
	if err != nil {
		return nil, helper.NewError("create edges handler", err)
	}

	store := database.NewGraphStore(chunks, edges)

	var graphProvider retrieval.GraphTraversalProvider = edges
	if o.inProcessGraph {
		graphProvider = graph.NewTraverser(store, graph.WithEdgeTypes(retrievalConfig.EdgeTypes...))
	}

	retriever, err := retrieval.NewRetriever(embedder, chunks, graphProvider,
		retrieval.WithLogger(o.logger),
		retrieval.WithConfig(retrievalConfig),
	)
	if err != nil {
		return nil, helper.NewError("create retriever", err)
	}

	indexerOptions := []ingest.Option{
		ingest.WithLogger(o.logger),
		ingest.WithBatchSize(o.batchSize),
	}
	if o.poolSize > 0 {
		indexerOptions = append(indexerOptions, ingest.WithPoolSize(o.poolSize))
	}
	if o.detectRefs {
		indexerOptions = append(indexerOptions, ingest.WithReferenceDetection())
	}
	indexer, err := ingest.NewIndexer(documents, chunks, edges, embedder, indexerOptions...)
	if err != nil {
		return nil, helper.NewError("create indexer", err)
	}

	return &Lexgraph{
		DB:        db,
		Documents: documents,
		Chunks:    chunks,
		Edges:     edges,
		Retriever: retriever,
		Indexer:   indexer,
		graph:     store,
		log:       o.logger,
	}, nil
}

// Close releases the indexer pool and closes the database connection.
// The embedder is owned by the caller.
func (g *Lexgraph) Close() error {
	if g.Indexer != nil {
		g.Indexer.Release()
	}
	return g.DB.Close()
}

// Retrieve runs hybrid retrieval and returns the fused candidates.
func (g *Lexgraph) Retrieve(ctx context.Context, query string, opts ...retrieval.RetrieveOption) ([]*model.Candidate, error) {
	return g.Retriever.Retrieve(ctx, query, opts...)
}

// DocumentScopedRetrieve runs hybrid retrieval restricted to one document.
// Filters given in opts are kept, graph results of other documents are
// dropped.
func (g *Lexgraph) DocumentScopedRetrieve(ctx context.Context, query string, documentRID uuid.UUID, opts ...retrieval.RetrieveOption) ([]*model.Candidate, error) {
	opts = append(opts, retrieval.WithFilters(model.Filters{model.FilterKeyDocumentID: documentRID.String()}))
	return g.Retriever.Retrieve(ctx, query, opts...)
}

// IngestDocument embeds and stores a parsed document.
func (g *Lexgraph) IngestDocument(ctx context.Context, doc *ingest.Document) (*ingest.Result, error) {
	return g.Indexer.Index(ctx, doc)
}

// NewAnswerService creates a question answering service on this retriever.
func (g *Lexgraph) NewAnswerService(llm llms.Model, opts ...answer.Option) (*answer.Service, error) {
	opts = append([]answer.Option{answer.WithLogger(g.log)}, opts...)
	return answer.NewService(g.Retriever, llm, opts...)
}

// Neighbors returns the chunks one edge away from chunkID in either
// direction of bidirectional edges.
func (g *Lexgraph) Neighbors(ctx context.Context, chunkID string, edgeTypes ...model.EdgeType) ([]*model.Chunk, error) {
	return graph.GetNeighbors(ctx, g.graph, chunkID, edgeTypes, true)
}

// BFSTraversal performs breadth-first search from a chunk
func (g *Lexgraph) BFSTraversal(ctx context.Context, sourceID string, maxHops int, edgeTypes []model.EdgeType, followBidirectional bool) ([]*graph.TraversalResult, error) {
	return graph.BFS(ctx, g.graph, sourceID, maxHops, edgeTypes, followBidirectional)
}

// ChangeIndexType changes the vector index type between HNSW and IVFFlat
func (g *Lexgraph) ChangeIndexType(ctx context.Context, indexType string, params map[string]int) error {
	return g.Chunks.ChangeIndexType(ctx, indexType, params)
}
