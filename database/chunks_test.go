package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/lexgraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunksNewChunksDBHandler(t *testing.T) {
	database := initDB(t)

	_, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err, "Expected NewDocumentsDBHandler to not return an error")

	t.Run("Valid call NewChunksDBHandler", func(t *testing.T) {
		chunksDbHandler, err := NewChunksDBHandler(database, testDimension, true)
		assert.NoError(t, err, "Expected NewChunksDBHandler to not return an error")
		require.NotNil(t, chunksDbHandler, "Expected NewChunksDBHandler to return a non-nil instance")
		assert.Equal(t, testDimension, chunksDbHandler.Dimension())
	})

	t.Run("Invalid call NewChunksDBHandler with nil database", func(t *testing.T) {
		_, err := NewChunksDBHandler(nil, testDimension, false)
		assert.Error(t, err, "Expected error when creating ChunksDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})

	t.Run("Invalid call NewChunksDBHandler with zero dimension", func(t *testing.T) {
		_, err := NewChunksDBHandler(database, 0, false)
		assert.Error(t, err, "Expected error for a zero embedding dimension")
	})
}

func TestChunksInsertAndSelect(t *testing.T) {
	handlers := initHandlers(t)
	ctx := context.Background()
	doc := handlers.insertDocument(t, "BGB")

	t.Run("Insert chunk with embedding", func(t *testing.T) {
		chunk := handlers.insertChunk(t, doc, "bgb-1", []float32{1, 0, 0}, model.Metadata{"articleNumber": "§ 1"})
		assert.NotZero(t, chunk.ID)
		assert.Equal(t, doc.ID, chunk.DocumentID)
		assert.Equal(t, doc.RID, chunk.DocumentRID)
		assert.Equal(t, "§ 1", chunk.Metadata["articleNumber"])
	})

	t.Run("Insert chunk without embedding", func(t *testing.T) {
		chunk := handlers.insertChunk(t, doc, "bgb-2", nil, nil)
		assert.NotZero(t, chunk.ID)
	})

	t.Run("Insert with same chunk id replaces the row", func(t *testing.T) {
		chunk := &model.Chunk{ChunkID: "bgb-1", DocumentRID: doc.RID, Text: "replaced", Embedding: []float32{0, 1, 0}}
		err := handlers.chunks.InsertChunk(ctx, chunk)
		require.NoError(t, err)

		selected, err := handlers.chunks.SelectChunk(ctx, "bgb-1")
		require.NoError(t, err)
		assert.Equal(t, "replaced", selected.Text)
	})

	t.Run("Insert rejects wrong dimension", func(t *testing.T) {
		chunk := &model.Chunk{ChunkID: "bgb-3", DocumentRID: doc.RID, Text: "x", Embedding: []float32{1, 0}}
		err := handlers.chunks.InsertChunk(ctx, chunk)
		assert.Error(t, err)
	})

	t.Run("Insert rejects unknown document", func(t *testing.T) {
		chunk := &model.Chunk{ChunkID: "orphan", DocumentRID: uuid.New(), Text: "x"}
		err := handlers.chunks.InsertChunk(ctx, chunk)
		assert.Error(t, err)
	})

	t.Run("Select chunks by document in insertion order", func(t *testing.T) {
		chunks, err := handlers.chunks.SelectChunksByDocument(ctx, doc.RID)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "bgb-1", chunks[0].ChunkID)
		assert.Equal(t, "bgb-2", chunks[1].ChunkID)
	})

	t.Run("Select unknown chunk", func(t *testing.T) {
		_, err := handlers.chunks.SelectChunk(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Delete chunk", func(t *testing.T) {
		err := handlers.chunks.DeleteChunk(ctx, "bgb-2")
		require.NoError(t, err)

		err = handlers.chunks.DeleteChunk(ctx, "bgb-2")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestChunksSearch(t *testing.T) {
	handlers := initHandlers(t)
	ctx := context.Background()

	gg := handlers.insertDocument(t, "GG")
	bgb := handlers.insertDocument(t, "BGB")
	handlers.insertChunk(t, gg, "gg-1", []float32{1, 0, 0}, model.Metadata{"articleNumber": "Art. 1", "pageNumber": 1})
	handlers.insertChunk(t, gg, "gg-2", []float32{0.9, 0.1, 0}, model.Metadata{"articleNumber": "Art. 2", "pageNumber": 1})
	handlers.insertChunk(t, bgb, "bgb-1", []float32{0, 1, 0}, model.Metadata{"articleNumber": "§ 1"})
	handlers.insertChunk(t, bgb, "bgb-2", nil, nil)

	query := []float32{1, 0, 0}

	t.Run("Most similar first, chunks without embedding skipped", func(t *testing.T) {
		hits, err := handlers.chunks.Search(ctx, query, 10, nil)
		require.NoError(t, err, "Expected Search to not return an error")
		require.Len(t, hits, 3)
		assert.Equal(t, "gg-1", hits[0].ID)
		assert.Equal(t, "gg-2", hits[1].ID)
		assert.Equal(t, "bgb-1", hits[2].ID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
		assert.InDelta(t, 0.0, hits[2].Score, 1e-6)
		assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	})

	t.Run("Payload carries citation metadata", func(t *testing.T) {
		hits, err := handlers.chunks.Search(ctx, query, 1, nil)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		payload := hits[0].Payload
		require.NotNil(t, payload)
		assert.Equal(t, gg.RID.String(), payload.DocumentID)
		assert.Equal(t, "text of gg-1", payload.Text)
		assert.Equal(t, "GG > gg-1", payload.HierarchyPath)
		assert.Equal(t, "Art. 1", payload.Metadata.ArticleNumber)
		require.NotNil(t, payload.Metadata.PageNumber)
		assert.Equal(t, 1, *payload.Metadata.PageNumber)
	})

	t.Run("Limit", func(t *testing.T) {
		hits, err := handlers.chunks.Search(ctx, query, 2, nil)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})

	t.Run("Document filter", func(t *testing.T) {
		hits, err := handlers.chunks.Search(ctx, query, 10, model.Filters{model.FilterKeyDocumentID: bgb.RID.String()})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "bgb-1", hits[0].ID)
	})

	t.Run("Metadata filter", func(t *testing.T) {
		hits, err := handlers.chunks.Search(ctx, query, 10, model.Filters{"articleNumber": "Art. 2"})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "gg-2", hits[0].ID)
	})

	t.Run("Filter without match", func(t *testing.T) {
		hits, err := handlers.chunks.Search(ctx, query, 10, model.Filters{"articleNumber": "Art. 99"})
		require.NoError(t, err)
		assert.NotNil(t, hits)
		assert.Empty(t, hits)
	})

	t.Run("Invalid filter", func(t *testing.T) {
		_, err := handlers.chunks.Search(ctx, query, 10, model.Filters{model.FilterKeyDocumentID: "not-a-uuid"})
		assert.ErrorIs(t, err, model.ErrInvalidFilter)
	})

	t.Run("Wrong query dimension", func(t *testing.T) {
		_, err := handlers.chunks.Search(ctx, []float32{1, 0}, 10, nil)
		assert.Error(t, err)
	})

	t.Run("Zero limit", func(t *testing.T) {
		hits, err := handlers.chunks.Search(ctx, query, 0, nil)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := handlers.chunks.Search(cancelled, query, 10, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
