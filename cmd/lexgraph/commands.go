package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/siherrmann/lexgraph"
	"github.com/siherrmann/lexgraph/core/answer"
	"github.com/siherrmann/lexgraph/core/ingest"
	"github.com/siherrmann/lexgraph/core/pipeline"
	"github.com/siherrmann/lexgraph/core/retrieval"
	"github.com/siherrmann/lexgraph/database"
	"github.com/siherrmann/lexgraph/helper"
	"github.com/siherrmann/lexgraph/model"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/urfave/cli/v2"
)

// session bundles an open engine with the embedder it owns.
type session struct {
	*lexgraph.Lexgraph
	embedder *pipeline.Embedder
}

func (s *session) Close() {
	if err := s.Lexgraph.Close(); err != nil {
		slog.Warn("Error closing database", "error", err)
	}
	if err := s.embedder.Close(); err != nil {
		slog.Warn("Error closing embedder", "error", err)
	}
}

func newEmbedder(c *cli.Context) (*pipeline.Embedder, error) {
	config, err := model.NewEmbeddingConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if name := c.String("embedding-model"); name != "" {
		config.Model = name
	}
	if dim := c.Int("embedding-dim"); dim > 0 {
		config.Dimension = dim
	}

	opts := []pipeline.Option{pipeline.WithLogger(slog.Default())}
	switch c.String("embedder") {
	case embedderHugot:
		return pipeline.NewHugotEmbedder(config, opts...)
	case embedderOpenAI:
		return pipeline.NewOpenAIEmbedder(c.String("embedding-host"), config.Model, config.Dimension, config.BatchSize, opts...)
	default:
		return nil, fmt.Errorf("unknown embedder %q: must be one of %s, %s", c.String("embedder"), embedderHugot, embedderOpenAI)
	}
}

func openSession(c *cli.Context, opts ...lexgraph.Option) (*session, error) {
	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, err
	}
	retrievalConfig, err := model.NewRetrievalConfigFromEnv()
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(c)
	if err != nil {
		return nil, helper.NewError("create embedder", err)
	}

	opts = append([]lexgraph.Option{lexgraph.WithLogger(slog.Default())}, opts...)
	g, err := lexgraph.NewLexgraph(dbConfig, retrievalConfig, embedder, opts...)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	return &session{Lexgraph: g, embedder: embedder}, nil
}

func retrieveOptions(c *cli.Context) ([]retrieval.RetrieveOption, error) {
	var opts []retrieval.RetrieveOption
	if topK := c.Int("top-k"); topK > 0 {
		opts = append(opts, retrieval.WithTopK(topK))
	}
	if c.Bool("no-graph") {
		opts = append(opts, retrieval.WithGraph(false))
	}
	if rid := c.String("document"); rid != "" {
		if _, err := uuid.Parse(rid); err != nil {
			return nil, fmt.Errorf("invalid document rid %q: %w", rid, err)
		}
		opts = append(opts, retrieval.WithFilters(model.Filters{model.FilterKeyDocumentID: rid}))
	}
	return opts, nil
}

func queryCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query is required")
	}
	opts, err := retrieveOptions(c)
	if err != nil {
		return err
	}

	var graphOpts []lexgraph.Option
	if c.Bool("in-process-graph") {
		graphOpts = append(graphOpts, lexgraph.WithInProcessGraph())
	}
	s, err := openSession(c, graphOpts...)
	if err != nil {
		return err
	}
	defer s.Close()

	candidates, err := s.Retrieve(c.Context, query, opts...)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(candidates)
	}
	printCandidates(candidates)
	return nil
}

func printCandidates(candidates []*model.Candidate) {
	if len(candidates) == 0 {
		fmt.Println("No candidates found.")
		return
	}
	header := color.New(color.FgCyan, color.Bold)
	faint := color.New(color.Faint)
	for i, c := range candidates {
		header.Printf("[%d] %s", i+1, answer.Citation(c, i+1))
		fmt.Printf(" (final %.4f, vector %.4f, graph %.4f)\n", c.FinalScore, c.VectorScore, c.GraphScore)
		faint.Printf("    %s\n", c.ID)
		fmt.Printf("    %s\n\n", c.Text)
	}
}

func ingestCommand(c *cli.Context) error {
	data, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	var doc ingest.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}

	var opts []lexgraph.Option
	if c.Bool("detect-references") {
		opts = append(opts, lexgraph.WithReferenceDetection())
	}
	if size := c.Int("batch-size"); size > 0 {
		opts = append(opts, lexgraph.WithIngestion(size, 0))
	}
	s, err := openSession(c, opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := s.IngestDocument(c.Context, &doc)
	if err != nil {
		return err
	}

	fmt.Printf("Document: %s\n", result.Document.RID)
	fmt.Printf("Chunks: %d\n", len(result.Chunks))
	fmt.Printf("Edges: %d\n", len(result.Edges))
	return nil
}

func askCommand(c *cli.Context) error {
	question := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("question is required")
	}

	llm, err := ollama.New(
		ollama.WithServerURL(c.String("ollama-host")),
		ollama.WithModel(c.String("model")),
	)
	if err != nil {
		return fmt.Errorf("failed to create ollama client: %w", err)
	}

	opts, err := retrieveOptions(c)
	if err != nil {
		return err
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	service, err := s.NewAnswerService(llm, answer.WithGeneration(c.Float64("temperature"), c.Int("max-tokens")))
	if err != nil {
		return err
	}

	result, err := service.Ask(c.Context, question, answer.WithRetrieveOptions(opts...))
	if err != nil {
		return err
	}

	fmt.Println(result.Text)
	if len(result.Sources) > 0 {
		fmt.Println()
		color.New(color.Bold).Println("Sources:")
		for i, source := range result.Sources {
			fmt.Printf("  [%d] %s (%.4f)\n", i+1, sourceLabel(source), source.RelevanceScore)
		}
	}
	slog.Debug("Answered question",
		"retrieval", result.RetrievalTime,
		"generation", result.GenerationTime,
		"total", result.TotalTime,
	)
	return nil
}

func sourceLabel(source answer.Source) string {
	parts := []string{source.DocumentTitle}
	if source.SectionTitle != "" {
		parts = append(parts, source.SectionTitle)
	}
	if source.ArticleNumber != "" {
		parts = append(parts, "Article "+source.ArticleNumber)
	}
	if source.PageNumber != nil {
		parts = append(parts, fmt.Sprintf("Page %d", *source.PageNumber))
	}
	return strings.Join(parts, ", ")
}

func listDocumentsCommand(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	docs, err := s.Documents.SelectAllDocuments(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No documents stored.")
		return nil
	}
	for _, doc := range docs {
		fmt.Printf("%s  %s  %s  %s\n", doc.RID, doc.CreatedAt.Format("2006-01-02 15:04"), doc.Title, doc.Source)
	}
	return nil
}

func deleteDocumentCommand(c *cli.Context) error {
	rid, err := uuid.Parse(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid document rid %q: %w", c.Args().First(), err)
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Documents.DeleteDocument(c.Context, rid); err != nil {
		return err
	}
	fmt.Printf("Deleted document %s\n", rid)
	return nil
}

func indexTypeCommand(c *cli.Context) error {
	indexType := strings.ToLower(c.String("type"))
	params := map[string]int{}
	switch indexType {
	case database.IndexTypeHNSW:
		params["m"] = c.Int("m")
		params["ef_construction"] = c.Int("ef-construction")
	case database.IndexTypeIVFFlat:
		params["lists"] = c.Int("lists")
	default:
		return fmt.Errorf("invalid index type %q: must be one of %s, %s", indexType, database.IndexTypeHNSW, database.IndexTypeIVFFlat)
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.ChangeIndexType(c.Context, indexType, params); err != nil {
		return err
	}
	fmt.Printf("Vector index rebuilt as %s\n", indexType)
	return nil
}
