package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/lexgraph/helper"
	"github.com/siherrmann/lexgraph/model"
	loadSql "github.com/siherrmann/lexgraph/sql"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunk(ctx context.Context, chunk *model.Chunk) error
	SelectChunk(ctx context.Context, chunkID string) (*model.Chunk, error)
	SelectChunksByDocument(ctx context.Context, documentRID uuid.UUID) ([]*model.Chunk, error)
	SelectChunksBySimilarity(ctx context.Context, embedding []float32, limit int, documentRIDs []uuid.UUID, filter model.Metadata) ([]*model.Chunk, error)
	DeleteChunk(ctx context.Context, chunkID string) error
	Search(ctx context.Context, queryVector []float32, limit int, filters model.Filters) ([]*model.VectorHit, error)
}

// ChunksDBHandler handles chunk-related database operations.
// It is the vector index of the retrieval engine.
type ChunksDBHandler struct {
	db        *helper.Database
	dimension int
}

// NewChunksDBHandler creates a new chunks database handler.
// The documents table has to exist before, chunks reference it.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim < 1 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	chunksDbHandler := &ChunksDBHandler{
		db:        db,
		dimension: embeddingDim,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler", "dimension", embeddingDim)

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table with its HNSW cosine index if missing.
func (h *ChunksDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, h.dimension)
	if err != nil {
		return helper.NewError("init chunks", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// Dimension returns the embedding dimension of the vector column.
func (h *ChunksDBHandler) Dimension() int {
	return h.dimension
}

// InsertChunk inserts or replaces a chunk by its chunk id.
// The chunk needs DocumentRID set, a nil embedding is stored as NULL.
func (h *ChunksDBHandler) InsertChunk(ctx context.Context, chunk *model.Chunk) error {
	if chunk.ChunkID == "" {
		return helper.NewError("chunk validation", fmt.Errorf("chunk id is empty"))
	}

	var embedding any
	if len(chunk.Embedding) > 0 {
		if len(chunk.Embedding) != h.dimension {
			return helper.NewError("chunk validation", fmt.Errorf("embedding has dimension %d, want %d", len(chunk.Embedding), h.dimension))
		}
		embedding = pgvector.NewVector(chunk.Embedding)
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_chunk($1, $2, $3, $4, $5, $6)`,
		chunk.ChunkID,
		chunk.DocumentRID,
		chunk.Text,
		chunk.HierarchyPath,
		embedding,
		chunk.Metadata,
	)

	err := scanChunk(row, chunk)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectChunk retrieves a chunk by its chunk id
func (h *ChunksDBHandler) SelectChunk(ctx context.Context, chunkID string) (*model.Chunk, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_chunk($1)`,
		chunkID,
	)

	chunk := &model.Chunk{}
	err := scanChunk(row, chunk)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select chunk", fmt.Errorf("%w: chunk %s", ErrNotFound, chunkID))
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return chunk, nil
}

// SelectChunksByDocument retrieves all chunks of a document in insertion order
func (h *ChunksDBHandler) SelectChunksByDocument(ctx context.Context, documentRID uuid.UUID) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_chunks_by_document($1)`,
		documentRID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	chunks := []*model.Chunk{}
	for rows.Next() {
		chunk := &model.Chunk{}
		if err := scanChunk(rows, chunk); err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// SelectChunksBySimilarity returns the chunks closest to the embedding by
// cosine distance, most similar first. Empty documentRIDs or filter do not
// restrict the search.
func (h *ChunksDBHandler) SelectChunksBySimilarity(ctx context.Context, embedding []float32, limit int, documentRIDs []uuid.UUID, filter model.Metadata) ([]*model.Chunk, error) {
	if len(embedding) != h.dimension {
		return nil, helper.NewError("embedding validation", fmt.Errorf("query vector has dimension %d, want %d", len(embedding), h.dimension))
	}

	var rids []string
	for _, rid := range documentRIDs {
		rids = append(rids, rid.String())
	}

	var metadataFilter any
	if len(filter) > 0 {
		metadataFilter = filter
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_chunks_by_similarity($1, $2, $3, $4)`,
		pgvector.NewVector(embedding),
		limit,
		pq.Array(rids),
		metadataFilter,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	chunks := []*model.Chunk{}
	for rows.Next() {
		chunk := &model.Chunk{}
		err := rows.Scan(
			&chunk.ID,
			&chunk.ChunkID,
			&chunk.DocumentID,
			&chunk.DocumentRID,
			&chunk.Text,
			&chunk.HierarchyPath,
			&chunk.Metadata,
			&chunk.CreatedAt,
			&chunk.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// Search implements the vector search provider on top of
// SelectChunksBySimilarity. documentId becomes a document restriction,
// every other filter a metadata containment match.
func (h *ChunksDBHandler) Search(ctx context.Context, queryVector []float32, limit int, filters model.Filters) ([]*model.VectorHit, error) {
	if err := filters.Validate(); err != nil {
		return nil, helper.NewError("filter validation", err)
	}
	if limit < 1 {
		return []*model.VectorHit{}, nil
	}

	chunks, err := h.SelectChunksBySimilarity(ctx, queryVector, limit, filters.DocumentRIDs(), filters.MetadataFilter())
	if err != nil {
		return nil, helper.NewError("similarity search", err)
	}

	hits := make([]*model.VectorHit, 0, len(chunks))
	for _, chunk := range chunks {
		hits = append(hits, chunk.ToVectorHit())
	}

	return hits, nil
}

// DeleteChunk deletes a chunk by its chunk id together with its edges
func (h *ChunksDBHandler) DeleteChunk(ctx context.Context, chunkID string) error {
	var deleted int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_chunk($1)`,
		chunkID,
	).Scan(&deleted)
	if err != nil {
		return helper.NewError("exec", err)
	}
	if deleted == 0 {
		return helper.NewError("delete chunk", fmt.Errorf("%w: chunk %s", ErrNotFound, chunkID))
	}
	return nil
}

func scanChunk(row scanner, chunk *model.Chunk) error {
	return row.Scan(
		&chunk.ID,
		&chunk.ChunkID,
		&chunk.DocumentID,
		&chunk.DocumentRID,
		&chunk.Text,
		&chunk.HierarchyPath,
		&chunk.Metadata,
		&chunk.CreatedAt,
	)
}
