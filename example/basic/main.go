package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/siherrmann/lexgraph"
	"github.com/siherrmann/lexgraph/core/ingest"
	"github.com/siherrmann/lexgraph/core/pipeline"
	"github.com/siherrmann/lexgraph/core/retrieval"
	"github.com/siherrmann/lexgraph/helper"
	"github.com/siherrmann/lexgraph/model"
)

var keywords = []string{"contract", "consent", "void", "damages", "tort"}

// keywordEmbed is a toy embedding counting keywords, enough to show the
// retrieval flow without downloading a model.
func keywordEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		vector := make([]float32, len(keywords)+1)
		for j, keyword := range keywords {
			vector[j] = float32(strings.Count(lower, keyword))
		}
		vector[len(keywords)] = 0.1
		vectors[i] = vector
	}
	return vectors, nil
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	embedder, err := pipeline.NewEmbedder(keywordEmbed, len(keywords)+1, pipeline.WithPrefixes("", ""))
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	defer embedder.Close()

	g, err := lexgraph.NewLexgraph(dbConfig, model.DefaultRetrievalConfig(), embedder, lexgraph.WithReferenceDetection())
	if err != nil {
		log.Fatalf("Failed to create lexgraph: %v", err)
	}
	defer g.Close()

	doc := &ingest.Document{
		Title:  "Civil Code",
		Source: "basic_example",
		Chunks: []ingest.Chunk{
			{
				ID:            "civil-book-1",
				Text:          "Book I. Obligations arising from contract.",
				HierarchyPath: "Civil Code > Book I",
			},
			{
				ID:            "civil-art-12",
				Text:          "Article 12. A contract requires the free consent of the parties.",
				HierarchyPath: "Civil Code > Book I > Article 12",
				ParentID:      "civil-book-1",
				Metadata:      model.Metadata{model.MetadataKeyArticleNumber: "12"},
			},
			{
				ID:            "civil-art-13",
				Text:          "Article 13. A contract concluded without the consent required by Article 12 is void.",
				HierarchyPath: "Civil Code > Book I > Article 13",
				ParentID:      "civil-book-1",
				Metadata:      model.Metadata{model.MetadataKeyArticleNumber: "13"},
			},
			{
				ID:            "civil-art-40",
				Text:          "Article 40. Whoever causes harm by tort owes damages.",
				HierarchyPath: "Civil Code > Book II > Article 40",
				Metadata:      model.Metadata{model.MetadataKeyArticleNumber: "40"},
			},
		},
	}

	fmt.Println("Ingesting document...")
	result, err := g.IngestDocument(context.Background(), doc)
	if err != nil {
		log.Fatalf("Failed to ingest document: %v", err)
	}
	fmt.Printf("Document inserted with RID: %s\n", result.Document.RID)
	fmt.Printf("Inserted %d chunks and %d edges\n", len(result.Chunks), len(result.Edges))

	queryText := "When is a contract void?"
	fmt.Printf("\nQuerying: %s\n", queryText)

	candidates, err := g.Retrieve(context.Background(), queryText, retrieval.WithTopK(3))
	if err != nil {
		log.Fatalf("Failed to retrieve: %v", err)
	}

	fmt.Printf("\nFound %d candidates:\n", len(candidates))
	for i, c := range candidates {
		fmt.Printf("\n--- Candidate %d ---\n", i+1)
		fmt.Printf("Chunk: %s\n", c.ID)
		fmt.Printf("Final: %.4f (vector %.4f, graph %.4f)\n", c.FinalScore, c.VectorScore, c.GraphScore)
		fmt.Printf("Path: %s\n", c.HierarchyPath)
		fmt.Printf("Text: %s\n", c.Text)
	}

	neighbors, err := g.Neighbors(context.Background(), "civil-art-13", model.EdgeTypeReferences)
	if err != nil {
		log.Fatalf("Failed to load neighbors: %v", err)
	}
	for _, n := range neighbors {
		fmt.Printf("\nArticle 13 references %s\n", n.ChunkID)
	}

	fmt.Println("\nBasic example completed successfully!")
}
