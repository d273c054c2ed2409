package pipeline

import (
	"context"

	"github.com/siherrmann/lexgraph/helper"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewLangchainEmbedder embeds through any langchaingo embedder.
func NewLangchainEmbedder(embedder embeddings.Embedder, dimension int, opts ...Option) (*Embedder, error) {
	return NewEmbedder(func(ctx context.Context, texts []string) ([][]float32, error) {
		return embedder.EmbedDocuments(ctx, texts)
	}, dimension, opts...)
}

// NewOpenAIEmbedder talks to an OpenAI compatible embedding endpoint such
// as a local text-embeddings-inference or vLLM server.
func NewOpenAIEmbedder(host string, modelName string, dimension int, batchSize int, opts ...Option) (*Embedder, error) {
	// Use "none" as token for local services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(host),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(modelName),
	)
	if err != nil {
		return nil, helper.NewError("create openai client", err)
	}

	embedderOpts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if batchSize > 0 {
		embedderOpts = append(embedderOpts, embeddings.WithBatchSize(batchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, embedderOpts...)
	if err != nil {
		return nil, helper.NewError("create langchain embedder", err)
	}

	return NewLangchainEmbedder(embedder, dimension, opts...)
}
