package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/siherrmann/lexgraph"
	"github.com/siherrmann/lexgraph/core/ingest"
	"github.com/siherrmann/lexgraph/core/pipeline"
	"github.com/siherrmann/lexgraph/core/retrieval"
	"github.com/siherrmann/lexgraph/database"
	"github.com/siherrmann/lexgraph/helper"
	"github.com/siherrmann/lexgraph/model"
	"github.com/tmc/langchaingo/llms/ollama"
)

// stageMonitor prints the chunk ids seen after every retrieval stage.
type stageMonitor struct{}

func (stageMonitor) Start(query string) { fmt.Printf("  start: %q\n", query) }
func (stageMonitor) AfterVectorSearch(ids []string) {
	fmt.Printf("  vector: %v\n", ids)
}
func (stageMonitor) AfterGraphTraversal(ids []string) {
	fmt.Printf("  graph:  %v\n", ids)
}
func (stageMonitor) End(results []*model.Candidate, err error) {
	fmt.Printf("  fused:  %v (err: %v)\n", model.CandidateIDs(results), err)
}

func civilCode() *ingest.Document {
	return &ingest.Document{
		Title:    "Civil Code",
		Source:   "civil_code.pdf",
		Metadata: model.Metadata{"jurisdiction": "example"},
		Chunks: []ingest.Chunk{
			{ID: "cc-b1", Text: "Book I. Contracts and obligations.", HierarchyPath: "Civil Code > Book I"},
			{
				ID:            "cc-a1",
				Text:          "Article 1. A contract is an agreement by which parties create, modify or extinguish obligations.",
				HierarchyPath: "Civil Code > Book I > Article 1",
				ParentID:      "cc-b1",
				Metadata:      model.Metadata{model.MetadataKeyArticleNumber: "1", model.MetadataKeyPageNumber: 3},
			},
			{
				ID:            "cc-a2",
				Text:          "Article 2. A contract is void when consent was obtained by fraud, see Article 1.",
				HierarchyPath: "Civil Code > Book I > Article 2",
				ParentID:      "cc-b1",
				Metadata:      model.Metadata{model.MetadataKeyArticleNumber: "2", model.MetadataKeyPageNumber: 3},
			},
			{
				ID:            "cc-a3",
				Text:          "Article 3. The party responsible for nullity under Article 2 compensates the other party.",
				HierarchyPath: "Civil Code > Book I > Article 3",
				ParentID:      "cc-b1",
				Metadata:      model.Metadata{model.MetadataKeyArticleNumber: "3", model.MetadataKeyPageNumber: 4},
			},
		},
	}
}

func labourCode() *ingest.Document {
	return &ingest.Document{
		Title:  "Labour Code",
		Source: "labour_code.pdf",
		Chunks: []ingest.Chunk{
			{
				ID:            "lc-a10",
				Text:          "Article 10. An employment contract must be concluded in writing.",
				HierarchyPath: "Labour Code > Chapter 2 > Article 10",
				Metadata:      model.Metadata{model.MetadataKeyArticleNumber: "10"},
			},
			{
				ID:            "lc-a11",
				Text:          "Article 11. The probation period may not exceed sixty days.",
				HierarchyPath: "Labour Code > Chapter 2 > Article 11",
				References:    []string{"lc-a10"},
				Metadata:      model.Metadata{model.MetadataKeyArticleNumber: "11"},
			},
		},
	}
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	// Downloads the embedding model into ./models on first run
	embedder, err := pipeline.NewHugotEmbedder(model.DefaultEmbeddingConfig())
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	defer embedder.Close()

	retrievalConfig := model.DefaultRetrievalConfig()
	retrievalConfig.TopK = 4
	retrievalConfig.GraphFailure = model.GraphFailureDegrade

	g, err := lexgraph.NewLexgraph(dbConfig, retrievalConfig, embedder, lexgraph.WithReferenceDetection())
	if err != nil {
		log.Fatalf("Failed to create lexgraph: %v", err)
	}
	defer g.Close()

	ctx := context.Background()

	fmt.Println("=== Ingesting Documents ===")
	civil, err := g.IngestDocument(ctx, civilCode())
	if err != nil {
		log.Fatalf("Failed to ingest civil code: %v", err)
	}
	fmt.Printf("'%s' (RID: %s): %d chunks, %d edges\n", civil.Document.Title, civil.Document.RID, len(civil.Chunks), len(civil.Edges))

	labour, err := g.IngestDocument(ctx, labourCode())
	if err != nil {
		log.Fatalf("Failed to ingest labour code: %v", err)
	}
	fmt.Printf("'%s' (RID: %s): %d chunks, %d edges\n", labour.Document.Title, labour.Document.RID, len(labour.Chunks), len(labour.Edges))

	queryText := "When is a contract void?"

	// 1. Vector-only retrieval
	fmt.Println("\n=== 1. Vector-Only Retrieval ===")
	vectorResults, err := g.Retrieve(ctx, queryText, retrieval.WithGraph(false))
	if err != nil {
		log.Fatalf("Vector retrieval failed: %v", err)
	}
	printCandidates(vectorResults)

	// 2. Hybrid retrieval with stage monitor
	fmt.Println("\n=== 2. Hybrid Retrieval ===")
	hybridResults, err := g.Retrieve(ctx, queryText, retrieval.WithMonitor(stageMonitor{}))
	if err != nil {
		log.Fatalf("Hybrid retrieval failed: %v", err)
	}
	printCandidates(hybridResults)

	// 3. Document-scoped retrieval
	fmt.Println("\n=== 3. Document-Scoped Retrieval ===")
	scopedResults, err := g.DocumentScopedRetrieve(ctx, "How must an employment contract be concluded?", labour.Document.RID)
	if err != nil {
		log.Fatalf("Document-scoped retrieval failed: %v", err)
	}
	printCandidates(scopedResults)

	// 4. Index type switching
	fmt.Println("\n=== 4. Changing Index Type ===")
	if err := g.ChangeIndexType(ctx, database.IndexTypeIVFFlat, map[string]int{"lists": 10}); err != nil {
		log.Printf("Warning: Index change failed: %v", err)
	} else {
		fmt.Println("Successfully switched to IVFFlat index")
	}
	if err := g.ChangeIndexType(ctx, database.IndexTypeHNSW, nil); err != nil {
		log.Printf("Warning: Index change failed: %v", err)
	} else {
		fmt.Println("Successfully switched back to HNSW index")
	}

	// 5. Graph traversal
	fmt.Println("\n=== 5. Graph Traversal (BFS) ===")
	traversal, err := g.BFSTraversal(ctx, "cc-b1", 2, nil, true)
	if err != nil {
		log.Fatalf("BFS traversal failed: %v", err)
	}
	for _, tr := range traversal {
		fmt.Printf("  - Distance %d: %s (path: %v)\n", tr.Distance, tr.Chunk.HierarchyPath, tr.Path)
	}

	// 6. Answer generation, only when an Ollama model is configured
	modelName := os.Getenv("OLLAMA_MODEL")
	if modelName == "" {
		fmt.Println("\nSet OLLAMA_MODEL to also generate an answer.")
		return
	}
	fmt.Println("\n=== 6. Answer Generation ===")
	llm, err := ollama.New(ollama.WithModel(modelName))
	if err != nil {
		log.Fatalf("Failed to create ollama client: %v", err)
	}
	service, err := g.NewAnswerService(llm)
	if err != nil {
		log.Fatalf("Failed to create answer service: %v", err)
	}
	result, err := service.Ask(ctx, queryText)
	if err != nil {
		log.Fatalf("Failed to answer: %v", err)
	}
	fmt.Println(result.Text)
	for _, source := range result.Sources {
		fmt.Printf("  - %s, Article %s (%.4f)\n", source.DocumentTitle, source.ArticleNumber, source.RelevanceScore)
	}
}

func printCandidates(candidates []*model.Candidate) {
	fmt.Printf("Found %d candidates:\n", len(candidates))
	for i, c := range candidates {
		text := c.Text
		if len(text) > 80 {
			text = text[:80] + "..."
		}
		fmt.Printf("  %d. %s final %.4f (vector %.4f, graph %.4f)\n", i+1, c.ID, c.FinalScore, c.VectorScore, c.GraphScore)
		fmt.Printf("     %s\n", text)
	}
}
