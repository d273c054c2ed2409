package model

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/siherrmann/lexgraph/helper"
)

// GraphFailurePolicy decides what a retrieval does when graph traversal fails.
type GraphFailurePolicy string

const (
	// GraphFailureFail returns the graph error to the caller.
	GraphFailureFail GraphFailurePolicy = "fail"
	// GraphFailureDegrade logs a warning and fuses the vector results alone.
	GraphFailureDegrade GraphFailurePolicy = "degrade"
)

var ErrInvalidConfig = errors.New("invalid retrieval config")

// RetrievalConfig represents the configuration of the hybrid retriever
type RetrievalConfig struct {
	TopK int `json:"top_k"`

	// Vector search requests Oversample*TopK candidates
	Oversample     int `json:"oversample"`
	MinQueryLength int `json:"min_query_length"`

	// Graph traversal parameters
	MaxDepth        int                `json:"max_depth"`
	MaxGraphResults int                `json:"max_graph_results"`
	EdgeTypes       []EdgeType         `json:"edge_types,omitempty"` // nil follows all types
	GraphFailure    GraphFailurePolicy `json:"graph_failure"`

	// Fusion parameters
	VectorWeight       float64 `json:"vector_weight"`
	GraphWeight        float64 `json:"graph_weight"`
	DiversityThreshold float64 `json:"diversity_threshold"`
}

// DefaultRetrievalConfig returns the configuration used in production
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:               20,
		Oversample:         2,
		MinQueryLength:     1,
		MaxDepth:           3,
		MaxGraphResults:    50,
		EdgeTypes:          nil,
		GraphFailure:       GraphFailureFail,
		VectorWeight:       0.6,
		GraphWeight:        0.4,
		DiversityThreshold: 0.95,
	}
}

// NewRetrievalConfigFromEnv overrides the defaults with LEXGRAPH_* variables,
// loading .env first if present.
func NewRetrievalConfigFromEnv() (RetrievalConfig, error) {
	config := DefaultRetrievalConfig()

	if err := helper.LoadEnvFile(); err != nil {
		return config, err
	}

	ints := map[string]*int{
		"LEXGRAPH_TOP_K":             &config.TopK,
		"LEXGRAPH_OVERSAMPLE":        &config.Oversample,
		"LEXGRAPH_MIN_QUERY_LENGTH":  &config.MinQueryLength,
		"LEXGRAPH_GRAPH_DEPTH":       &config.MaxDepth,
		"LEXGRAPH_GRAPH_MAX_RESULTS": &config.MaxGraphResults,
	}
	for key, target := range ints {
		value := os.Getenv(key)
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return config, helper.NewError("parse "+key, err)
		}
		*target = parsed
	}

	floats := map[string]*float64{
		"LEXGRAPH_VECTOR_WEIGHT":       &config.VectorWeight,
		"LEXGRAPH_GRAPH_WEIGHT":        &config.GraphWeight,
		"LEXGRAPH_DIVERSITY_THRESHOLD": &config.DiversityThreshold,
	}
	for key, target := range floats {
		value := os.Getenv(key)
		if value == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return config, helper.NewError("parse "+key, err)
		}
		*target = parsed
	}

	if value := os.Getenv("LEXGRAPH_GRAPH_FAILURE"); value != "" {
		config.GraphFailure = GraphFailurePolicy(value)
	}

	return config, config.Validate()
}

// Validate checks ranges. Weights are independent multipliers and only
// need to be non negative.
func (c RetrievalConfig) Validate() error {
	switch {
	case c.TopK < 1:
		return fmt.Errorf("%w: top k must be at least 1, got %d", ErrInvalidConfig, c.TopK)
	case c.Oversample < 1:
		return fmt.Errorf("%w: oversample must be at least 1, got %d", ErrInvalidConfig, c.Oversample)
	case c.MinQueryLength < 1:
		return fmt.Errorf("%w: min query length must be at least 1, got %d", ErrInvalidConfig, c.MinQueryLength)
	case c.MaxDepth < 1:
		return fmt.Errorf("%w: max depth must be at least 1, got %d", ErrInvalidConfig, c.MaxDepth)
	case c.MaxGraphResults < 1:
		return fmt.Errorf("%w: max graph results must be at least 1, got %d", ErrInvalidConfig, c.MaxGraphResults)
	case c.VectorWeight < 0 || c.GraphWeight < 0:
		return fmt.Errorf("%w: weights must not be negative", ErrInvalidConfig)
	case c.DiversityThreshold < 0:
		return fmt.Errorf("%w: diversity threshold must not be negative, got %v", ErrInvalidConfig, c.DiversityThreshold)
	}

	switch c.GraphFailure {
	case GraphFailureFail, GraphFailureDegrade:
	default:
		return fmt.Errorf("%w: unknown graph failure policy %q", ErrInvalidConfig, c.GraphFailure)
	}

	for _, edgeType := range c.EdgeTypes {
		if !edgeType.Valid() {
			return fmt.Errorf("%w: unknown edge type %q", ErrInvalidConfig, edgeType)
		}
	}

	return nil
}

// EmbeddingConfig selects the embedding model.
type EmbeddingConfig struct {
	Model        string `json:"model"`
	OnnxFilePath string `json:"onnx_file_path,omitempty"`
	Dimension    int    `json:"dimension"`
	BatchSize    int    `json:"batch_size"`
}

func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Model:        "intfloat/multilingual-e5-large",
		OnnxFilePath: "onnx/model.onnx",
		Dimension:    1024,
		BatchSize:    32,
	}
}

// NewEmbeddingConfigFromEnv reads LEXGRAPH_EMBEDDING_MODEL,
// LEXGRAPH_EMBEDDING_ONNX_FILE, LEXGRAPH_EMBEDDING_DIM and
// EMBEDDING_BATCH_SIZE over the defaults.
func NewEmbeddingConfigFromEnv() (EmbeddingConfig, error) {
	config := DefaultEmbeddingConfig()

	if err := helper.LoadEnvFile(); err != nil {
		return config, err
	}

	if value := os.Getenv("LEXGRAPH_EMBEDDING_MODEL"); value != "" {
		config.Model = value
	}
	if value, ok := os.LookupEnv("LEXGRAPH_EMBEDDING_ONNX_FILE"); ok {
		config.OnnxFilePath = value
	}
	for key, target := range map[string]*int{
		"LEXGRAPH_EMBEDDING_DIM": &config.Dimension,
		"EMBEDDING_BATCH_SIZE":   &config.BatchSize,
	} {
		value := os.Getenv(key)
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return config, helper.NewError("parse "+key, err)
		}
		if parsed < 1 {
			return config, fmt.Errorf("%w: %s must be at least 1", ErrInvalidConfig, key)
		}
		*target = parsed
	}

	return config, nil
}
