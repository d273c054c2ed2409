// Package ingest stores parsed documents as embedded chunks and the edges
// between them.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/siherrmann/lexgraph/core/pipeline"
	"github.com/siherrmann/lexgraph/helper"
	"github.com/siherrmann/lexgraph/model"
)

const DefaultBatchSize = 32

type DocumentStore interface {
	InsertDocument(ctx context.Context, doc *model.Document) error
}

type ChunkStore interface {
	InsertChunk(ctx context.Context, chunk *model.Chunk) error
	SelectChunk(ctx context.Context, chunkID string) (*model.Chunk, error)
}

type EdgeStore interface {
	InsertEdge(ctx context.Context, edge *model.Edge) error
}

// PassageEncoder embeds passages, one vector per text in input order.
type PassageEncoder interface {
	EncodePassages(ctx context.Context, texts []string) ([][]float32, error)
}

// Result is what Index stored.
type Result struct {
	Document *model.Document
	Chunks   []*model.Chunk
	Edges    []*model.Edge
}

// Indexer embeds the chunks of a document in batches on a worker pool and
// writes document, chunks and hierarchy or reference edges.
type Indexer struct {
	documents DocumentStore
	chunks    ChunkStore
	edges     EdgeStore
	encoder   PassageEncoder
	pool      *ants.Pool
	batchSize int
	detect    bool
	logger    *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer) error

// WithPoolSize sets the number of batches embedded concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(ix *Indexer) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if ix.pool != nil {
			ix.pool.Release()
		}
		ix.pool = pool
		return nil
	}
}

// WithBatchSize sets how many passages go into one embedding call.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(ix *Indexer) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		ix.batchSize = size
		return nil
	}
}

// WithReferenceDetection adds references edges for article citations in
// chunk text, resolved against the articleNumber of the document's chunks.
func WithReferenceDetection() Option {
	return func(ix *Indexer) error {
		ix.detect = true
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
		return nil
	}
}

// NewIndexer creates an indexer. Call Release when done.
func NewIndexer(documents DocumentStore, chunks ChunkStore, edges EdgeStore, encoder PassageEncoder, opts ...Option) (*Indexer, error) {
	if documents == nil {
		return nil, ErrDocumentStoreRequired
	}
	if chunks == nil {
		return nil, ErrChunkStoreRequired
	}
	if edges == nil {
		return nil, ErrEdgeStoreRequired
	}
	if encoder == nil {
		return nil, ErrEncoderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	ix := &Indexer{
		documents: documents,
		chunks:    chunks,
		edges:     edges,
		encoder:   encoder,
		pool:      pool,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(ix); optErr != nil {
			ix.Release()
			return nil, optErr
		}
	}

	return ix, nil
}

// Index validates the document, checks that references to other documents
// name stored chunks and embeds the whole document before writing anything.
// Rows already written stay in place if a later write fails.
func (ix *Indexer) Index(ctx context.Context, doc *Document) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if err := ix.checkReferences(ctx, doc); err != nil {
		return nil, err
	}

	vectors, err := ix.embed(ctx, doc.texts())
	if err != nil {
		return nil, helper.NewError("embed passages", err)
	}

	stored := &model.Document{
		Title:    doc.Title,
		Source:   doc.Source,
		Metadata: doc.Metadata,
	}
	if err := ix.documents.InsertDocument(ctx, stored); err != nil {
		return nil, helper.NewError("insert document", err)
	}

	result := &Result{Document: stored}
	for i, c := range doc.Chunks {
		chunk := &model.Chunk{
			ChunkID:       c.ID,
			DocumentRID:   stored.RID,
			Text:          c.Text,
			HierarchyPath: c.HierarchyPath,
			Embedding:     vectors[i],
			Metadata:      chunkMetadata(c.Metadata, doc.Title),
		}
		if err := ix.chunks.InsertChunk(ctx, chunk); err != nil {
			return nil, helper.NewError(fmt.Sprintf("insert chunk %s", c.ID), err)
		}
		result.Chunks = append(result.Chunks, chunk)
	}

	for _, edge := range documentEdges(doc, ix.detect) {
		if err := ix.edges.InsertEdge(ctx, edge); err != nil {
			return nil, helper.NewError(fmt.Sprintf("insert edge %s -> %s", edge.SourceChunkID, edge.TargetChunkID), err)
		}
		result.Edges = append(result.Edges, edge)
	}

	ix.logger.Info("Indexed document",
		"title", stored.Title,
		"rid", stored.RID.String(),
		"chunks", len(result.Chunks),
		"edges", len(result.Edges),
	)

	return result, nil
}

// checkReferences looks up every referenced chunk that is not part of doc.
func (ix *Indexer) checkReferences(ctx context.Context, doc *Document) error {
	ids := make(map[string]bool, len(doc.Chunks))
	for _, c := range doc.Chunks {
		ids[c.ID] = true
	}

	checked := map[string]bool{}
	for _, c := range doc.Chunks {
		for _, ref := range c.References {
			if ref == "" || ids[ref] || checked[ref] {
				continue
			}
			checked[ref] = true

			_, err := ix.chunks.SelectChunk(ctx, ref)
			if errors.Is(err, model.ErrNotFound) {
				return fmt.Errorf("%w: reference %q of chunk %q is unknown", ErrInvalidDocument, ref, c.ID)
			}
			if err != nil {
				return helper.NewError(fmt.Sprintf("select referenced chunk %s", ref), err)
			}
		}
	}
	return nil
}

// Release releases the worker pool. The indexer should not be used after.
func (ix *Indexer) Release() {
	if ix.pool != nil {
		ix.pool.Release()
	}
}

// embed runs one EncodePassages call per batch on the pool and returns the
// vectors in input order. The first failing batch wins.
func (ix *Indexer) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	batches := (len(texts) + ix.batchSize - 1) / ix.batchSize
	errs := make([]error, batches)

	var wg sync.WaitGroup
	for b := 0; b < batches; b++ {
		start := b * ix.batchSize
		end := min(start+ix.batchSize, len(texts))

		wg.Add(1)
		err := ix.pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[b] = err
				return
			}
			batch, err := ix.encoder.EncodePassages(ctx, texts[start:end])
			if err != nil {
				errs[b] = err
				return
			}
			if len(batch) != end-start {
				errs[b] = fmt.Errorf("encoder returned %d vectors for %d passages", len(batch), end-start)
				return
			}
			copy(vectors[start:end], batch)
		})
		if err != nil {
			wg.Done()
			errs[b] = err
		}
	}
	wg.Wait()

	for b, err := range errs {
		if err != nil {
			return nil, helper.NewError(fmt.Sprintf("batch %d", b), err)
		}
	}
	ix.logger.Debug("Embedded passages", "passages", len(texts), "batches", batches)

	return vectors, nil
}

// chunkMetadata copies metadata and adds the document title for citations.
func chunkMetadata(metadata model.Metadata, title string) model.Metadata {
	m := make(model.Metadata, len(metadata)+1)
	for key, value := range metadata {
		m[key] = value
	}
	if _, ok := m[model.MetadataKeyDocumentTitle]; !ok {
		m[model.MetadataKeyDocumentTitle] = title
	}
	return m
}

// detectedReferenceWeight is lower than the weight of explicit references.
const detectedReferenceWeight = 0.7

// documentEdges returns a has_child edge per parent link, then per chunk a
// references edge per distinct explicit reference followed by the detected
// ones. Self references are dropped.
func documentEdges(doc *Document, detect bool) []*model.Edge {
	var edges []*model.Edge
	for _, c := range doc.Chunks {
		if c.ParentID != "" {
			edges = append(edges, &model.Edge{
				SourceChunkID: c.ParentID,
				TargetChunkID: c.ID,
				EdgeType:      model.EdgeTypeHasChild,
				Weight:        1.0,
			})
		}
	}

	var articles map[string][]string
	if detect {
		articles = articleIndex(doc)
	}

	for _, c := range doc.Chunks {
		seen := make(map[string]bool, len(c.References))
		for _, ref := range c.References {
			if ref == "" || ref == c.ID || seen[ref] {
				continue
			}
			seen[ref] = true
			edges = append(edges, &model.Edge{
				SourceChunkID: c.ID,
				TargetChunkID: ref,
				EdgeType:      model.EdgeTypeReferences,
				Weight:        1.0,
			})
		}

		if !detect {
			continue
		}
		for _, ref := range pipeline.ExtractLegalReferences(c.Text) {
			for _, target := range articles[ref.Article] {
				if target == c.ID || seen[target] {
					continue
				}
				seen[target] = true
				edges = append(edges, &model.Edge{
					SourceChunkID: c.ID,
					TargetChunkID: target,
					EdgeType:      model.EdgeTypeReferences,
					Weight:        detectedReferenceWeight,
					Metadata: model.Metadata{
						"referenceText": ref.Text,
						"detectionType": ref.Pattern,
					},
				})
			}
		}
	}
	return edges
}

// articleIndex maps normalized article numbers to the chunks carrying them.
func articleIndex(doc *Document) map[string][]string {
	articles := make(map[string][]string)
	for _, c := range doc.Chunks {
		article := model.NewCitationMetadata(c.Metadata).ArticleNumber
		if article == "" {
			continue
		}
		key := pipeline.NormalizeArticle(article)
		articles[key] = append(articles[key], c.ID)
	}
	return articles
}
