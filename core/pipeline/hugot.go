package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/lexgraph/helper"
	"github.com/siherrmann/lexgraph/model"
)

// NewHugotEmbedder runs a sentence transformer model in process with the
// pure Go hugot backend. The model is downloaded into ./models on first use.
// Embeddings are L2 normalised so cosine distance matches the index.
func NewHugotEmbedder(config model.EmbeddingConfig, opts ...Option) (*Embedder, error) {
	modelPath, err := helper.PrepareModel(config.Model, config.OnnxFilePath)
	if err != nil {
		return nil, helper.NewError("prepare model", err)
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, helper.NewError("create hugot session", err)
	}

	pipelineConfig := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "lexgraph-embedder",
		Options: []hugot.FeatureExtractionOption{
			pipelines.WithNormalization(),
		},
	}

	sentencePipeline, err := hugot.NewPipeline(session, pipelineConfig)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, helper.NewError("create sentence pipeline", fmt.Errorf("%w (cleanup error: %v)", err, destroyErr))
		}
		return nil, helper.NewError("create sentence pipeline", err)
	}

	// The go backend session is not safe for concurrent runs.
	var mu sync.Mutex
	embed := func(ctx context.Context, texts []string) ([][]float32, error) {
		mu.Lock()
		defer mu.Unlock()

		result, err := sentencePipeline.RunPipeline(texts)
		if err != nil {
			return nil, helper.NewError("run pipeline", err)
		}
		return result.Embeddings, nil
	}

	embedder, err := NewEmbedder(embed, config.Dimension, opts...)
	if err != nil {
		_ = session.Destroy()
		return nil, err
	}
	embedder.close = session.Destroy

	return embedder, nil
}
