package database

import (
	"context"
	"log"
	"testing"

	"github.com/siherrmann/lexgraph/helper"
	"github.com/siherrmann/lexgraph/model"
	loadSql "github.com/siherrmann/lexgraph/sql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

const testDimension = 3

var dbPort string

func TestMain(m *testing.M) {
	var teardown func(ctx context.Context, opts ...testcontainers.TerminateOption) error
	var err error
	teardown, dbPort, err = helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}

	m.Run()

	if teardown != nil && teardown(context.Background()) != nil {
		log.Fatalf("error tearing down postgres container: %v", err)
	}
}

func initDB(t *testing.T) *helper.Database {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")
	database := helper.NewTestDatabase(dbConfig)
	t.Cleanup(func() { _ = database.Close() })

	err = loadSql.Init(database.Instance)
	require.NoError(t, err)

	return database
}

type testHandlers struct {
	documents *DocumentsDBHandler
	chunks    *ChunksDBHandler
	edges     *EdgesDBHandler
}

func initHandlers(t *testing.T, edgeTypes ...model.EdgeType) *testHandlers {
	database := initDB(t)

	documents, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err, "Expected NewDocumentsDBHandler to not return an error")
	chunks, err := NewChunksDBHandler(database, testDimension, true)
	require.NoError(t, err, "Expected NewChunksDBHandler to not return an error")
	edges, err := NewEdgesDBHandler(database, true, edgeTypes...)
	require.NoError(t, err, "Expected NewEdgesDBHandler to not return an error")

	return &testHandlers{documents: documents, chunks: chunks, edges: edges}
}

func (h *testHandlers) insertDocument(t *testing.T, title string) *model.Document {
	doc := &model.Document{Title: title, Source: title + ".pdf"}
	err := h.documents.InsertDocument(context.Background(), doc)
	require.NoError(t, err, "Expected InsertDocument to not return an error")
	return doc
}

func (h *testHandlers) insertChunk(t *testing.T, doc *model.Document, chunkID string, embedding []float32, metadata model.Metadata) *model.Chunk {
	chunk := &model.Chunk{
		ChunkID:       chunkID,
		DocumentRID:   doc.RID,
		Text:          "text of " + chunkID,
		HierarchyPath: doc.Title + " > " + chunkID,
		Embedding:     embedding,
		Metadata:      metadata,
	}
	err := h.chunks.InsertChunk(context.Background(), chunk)
	require.NoError(t, err, "Expected InsertChunk to not return an error")
	return chunk
}

func (h *testHandlers) insertEdge(t *testing.T, source, target string, edgeType model.EdgeType, bidirectional bool) *model.Edge {
	edge := &model.Edge{
		SourceChunkID: source,
		TargetChunkID: target,
		EdgeType:      edgeType,
		Bidirectional: bidirectional,
	}
	err := h.edges.InsertEdge(context.Background(), edge)
	require.NoError(t, err, "Expected InsertEdge to not return an error")
	return edge
}
