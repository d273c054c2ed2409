package lexgraph

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/siherrmann/lexgraph/core/ingest"
	"github.com/siherrmann/lexgraph/core/pipeline"
	"github.com/siherrmann/lexgraph/core/retrieval"
	"github.com/siherrmann/lexgraph/helper"
	"github.com/siherrmann/lexgraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKeywords = []string{"contract", "tort", "property"}

// testEmbedder counts keywords per dimension, with a constant last
// dimension so no vector is zero.
func testEmbedder(t *testing.T) *pipeline.Embedder {
	embed := func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			lower := strings.ToLower(text)
			vector := make([]float32, len(testKeywords)+1)
			for j, keyword := range testKeywords {
				vector[j] = float32(strings.Count(lower, keyword))
			}
			vector[len(testKeywords)] = 0.1
			vectors[i] = vector
		}
		return vectors, nil
	}
	embedder, err := pipeline.NewEmbedder(embed, len(testKeywords)+1, pipeline.WithPrefixes("", ""))
	require.NoError(t, err, "failed to create embedder")
	return embedder
}

func testLogger() *slog.Logger {
	return slog.New(helper.NewPrettyHandler(os.Stdout, helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: slog.LevelWarn},
	}))
}

func initLexgraph(t *testing.T, opts ...Option) *Lexgraph {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")

	opts = append([]Option{WithLogger(testLogger())}, opts...)
	g, err := NewLexgraph(dbConfig, model.DefaultRetrievalConfig(), testEmbedder(t), opts...)
	require.NoError(t, err, "failed to create lexgraph")
	require.NotNil(t, g, "expected lexgraph to be non-nil")

	t.Cleanup(func() {
		_ = g.Close()
	})

	return g
}

func testDocument() *ingest.Document {
	return &ingest.Document{
		Title:  "Civil Code",
		Source: "civil_code.pdf",
		Chunks: []ingest.Chunk{
			{
				ID:            "cc-1",
				Text:          "Book one governs every contract between private parties.",
				HierarchyPath: "Civil Code > Book 1",
				Metadata:      model.Metadata{model.MetadataKeyArticleNumber: "1"},
			},
			{
				ID:            "cc-2",
				Text:          "A contract is void when its object is unlawful.",
				HierarchyPath: "Civil Code > Book 1 > Article 2",
				ParentID:      "cc-1",
				Metadata:      model.Metadata{model.MetadataKeyArticleNumber: "2"},
			},
			{
				ID:            "cc-3",
				Text:          "Liability in tort requires fault and damage.",
				HierarchyPath: "Civil Code > Book 1 > Article 3",
				ParentID:      "cc-1",
				Metadata:      model.Metadata{model.MetadataKeyArticleNumber: "3"},
			},
			{
				ID:            "cc-4",
				Text:          "Ownership of property passes on delivery, see Article 2.",
				HierarchyPath: "Civil Code > Book 2 > Article 4",
				Metadata:      model.Metadata{model.MetadataKeyArticleNumber: "4"},
			},
		},
	}
}

func TestNewLexgraph(t *testing.T) {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err)

	t.Run("Valid call NewLexgraph", func(t *testing.T) {
		g, err := NewLexgraph(dbConfig, model.DefaultRetrievalConfig(), testEmbedder(t), WithLogger(testLogger()))
		require.NoError(t, err, "Expected NewLexgraph to not return an error")
		require.NotNil(t, g, "Expected NewLexgraph to return a non-nil instance")
		assert.NotNil(t, g.DB, "Expected lexgraph to have a database instance")
		assert.NotNil(t, g.Documents, "Expected lexgraph to have documents handler")
		assert.NotNil(t, g.Chunks, "Expected lexgraph to have chunks handler")
		assert.NotNil(t, g.Edges, "Expected lexgraph to have edges handler")
		assert.NotNil(t, g.Retriever, "Expected lexgraph to have a retriever")
		assert.NotNil(t, g.Indexer, "Expected lexgraph to have an indexer")
		assert.Equal(t, len(testKeywords)+1, g.Chunks.Dimension(), "Expected chunks dimension to match the embedder")

		err = g.Close()
		assert.NoError(t, err, "Expected Close to not return an error")
	})

	t.Run("Nil embedder", func(t *testing.T) {
		g, err := NewLexgraph(dbConfig, model.DefaultRetrievalConfig(), nil, WithLogger(testLogger()))
		assert.ErrorIs(t, err, retrieval.ErrEmbeddingProviderRequired, "Expected missing embedder error")
		assert.Nil(t, g)
	})

	t.Run("Invalid retrieval config", func(t *testing.T) {
		config := model.DefaultRetrievalConfig()
		config.TopK = 0
		g, err := NewLexgraph(dbConfig, config, testEmbedder(t), WithLogger(testLogger()))
		assert.ErrorIs(t, err, model.ErrInvalidConfig, "Expected invalid config error")
		assert.Nil(t, g)
	})

	t.Run("Nil database configuration", func(t *testing.T) {
		g, err := NewLexgraph(nil, model.DefaultRetrievalConfig(), testEmbedder(t), WithLogger(testLogger()))
		assert.Error(t, err, "Expected error for nil database configuration")
		assert.Nil(t, g)
	})

	t.Run("Lexgraph with nil database handles Close gracefully", func(t *testing.T) {
		g := &Lexgraph{}
		err := g.Close()
		assert.NoError(t, err, "Expected Close to handle nil DB gracefully")
	})
}

func TestIngestAndRetrieve(t *testing.T) {
	for _, mode := range []struct {
		name string
		opts []Option
	}{
		{name: "database traversal"},
		{name: "in-process traversal", opts: []Option{WithInProcessGraph()}},
	} {
		t.Run(mode.name, func(t *testing.T) {
			g := initLexgraph(t, mode.opts...)
			ctx := context.Background()

			result, err := g.IngestDocument(ctx, testDocument())
			require.NoError(t, err, "Expected IngestDocument to not return an error")
			assert.Len(t, result.Chunks, 4)
			assert.Len(t, result.Edges, 2, "Expected one has_child edge per parent link")

			candidates, err := g.Retrieve(ctx, "tort liability", retrieval.WithTopK(3))
			require.NoError(t, err, "Expected Retrieve to not return an error")
			require.NotEmpty(t, candidates)
			assert.LessOrEqual(t, len(candidates), 3, "Expected at most topK candidates")
			assert.Equal(t, "cc-3", candidates[0].ID, "Expected the tort chunk first")
			assert.Equal(t, result.Document.RID.String(), candidates[0].ParentDocumentID)
			assert.Equal(t, "Civil Code", candidates[0].Metadata.DocumentTitle)

			for i := 1; i < len(candidates); i++ {
				assert.GreaterOrEqual(t, candidates[i-1].FinalScore, candidates[i].FinalScore, "Expected candidates ordered by final score")
			}
		})
	}
}

func TestDocumentScopedRetrieve(t *testing.T) {
	g := initLexgraph(t)
	ctx := context.Background()

	first, err := g.IngestDocument(ctx, testDocument())
	require.NoError(t, err)

	other := &ingest.Document{
		Title: "Commercial Code",
		Chunks: []ingest.Chunk{
			{
				ID:         "com-1",
				Text:       "A commercial contract binds merchants by its terms.",
				References: []string{"cc-2"},
				Metadata:   model.Metadata{model.MetadataKeyArticleNumber: "1"},
			},
			{
				ID:       "com-2",
				Text:     "Merchants keep books of every contract they sign.",
				Metadata: model.Metadata{model.MetadataKeyArticleNumber: "2"},
			},
		},
	}
	second, err := g.IngestDocument(ctx, other)
	require.NoError(t, err)
	require.Len(t, second.Edges, 1, "Expected the cross document reference to be stored")

	t.Run("Only chunks of the given document", func(t *testing.T) {
		candidates, err := g.DocumentScopedRetrieve(ctx, "contract", second.Document.RID, retrieval.WithGraph(false))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"com-1", "com-2"}, model.CandidateIDs(candidates))
	})

	t.Run("Other document excluded", func(t *testing.T) {
		candidates, err := g.DocumentScopedRetrieve(ctx, "contract", first.Document.RID, retrieval.WithGraph(false))
		require.NoError(t, err)
		require.NotEmpty(t, candidates)
		for _, c := range candidates {
			assert.Equal(t, first.Document.RID.String(), c.ParentDocumentID, "Expected only chunks of the civil code")
		}
	})

	t.Run("Caller filters are kept", func(t *testing.T) {
		candidates, err := g.DocumentScopedRetrieve(
			ctx,
			"contract",
			second.Document.RID,
			retrieval.WithGraph(false),
			retrieval.WithFilters(model.Filters{model.MetadataKeyArticleNumber: "2"}),
		)
		require.NoError(t, err)
		assert.Equal(t, []string{"com-2"}, model.CandidateIDs(candidates), "Expected the article filter and the document scope together")
	})

	t.Run("Graph results stay in the document", func(t *testing.T) {
		candidates, err := g.DocumentScopedRetrieve(ctx, "contract", second.Document.RID)
		require.NoError(t, err)
		require.NotEmpty(t, candidates)
		for _, c := range candidates {
			assert.Equal(t, second.Document.RID.String(), c.ParentDocumentID, "Expected %s not to be reached through the reference", c.ID)
		}

		candidates, err = g.DocumentScopedRetrieve(ctx, "contract", first.Document.RID)
		require.NoError(t, err)
		assert.NotContains(t, model.CandidateIDs(candidates), "com-1", "Expected the incoming reference not to leave the civil code")
	})
}

func TestNeighborsAndBFS(t *testing.T) {
	g := initLexgraph(t)
	ctx := context.Background()

	_, err := g.IngestDocument(ctx, testDocument())
	require.NoError(t, err)

	t.Run("Neighbors follow outgoing edges", func(t *testing.T) {
		neighbors, err := g.Neighbors(ctx, "cc-1")
		require.NoError(t, err)
		ids := make([]string, 0, len(neighbors))
		for _, n := range neighbors {
			ids = append(ids, n.ChunkID)
		}
		assert.ElementsMatch(t, []string{"cc-2", "cc-3"}, ids)
	})

	t.Run("Neighbors filtered by edge type", func(t *testing.T) {
		neighbors, err := g.Neighbors(ctx, "cc-1", model.EdgeTypeReferences)
		require.NoError(t, err)
		assert.Empty(t, neighbors, "Expected no references from the book chunk")
	})

	t.Run("BFS from a leaf", func(t *testing.T) {
		results, err := g.BFSTraversal(ctx, "cc-2", 2, nil, false)
		require.NoError(t, err)
		assert.Empty(t, results, "Expected no outgoing edges from a leaf")
	})
}

func TestReferenceDetection(t *testing.T) {
	g := initLexgraph(t, WithReferenceDetection(), WithIngestion(2, 1))
	ctx := context.Background()

	result, err := g.IngestDocument(ctx, testDocument())
	require.NoError(t, err)
	require.Len(t, result.Edges, 3, "Expected the detected Article 2 reference in addition to has_child edges")

	detected := result.Edges[2]
	assert.Equal(t, "cc-4", detected.SourceChunkID)
	assert.Equal(t, "cc-2", detected.TargetChunkID)
	assert.Equal(t, model.EdgeTypeReferences, detected.EdgeType)

	neighbors, err := g.Neighbors(ctx, "cc-4", model.EdgeTypeReferences)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "cc-2", neighbors[0].ChunkID)
}

func TestChangeIndexType(t *testing.T) {
	g := initLexgraph(t)

	err := g.ChangeIndexType(context.Background(), "ivfflat", map[string]int{"lists": 10})
	assert.NoError(t, err, "Expected ChangeIndexType to ivfflat to succeed")

	err = g.ChangeIndexType(context.Background(), "unknown", nil)
	assert.Error(t, err, "Expected error for unknown index type")
}
