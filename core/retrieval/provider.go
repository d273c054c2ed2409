package retrieval

import (
	"context"

	"github.com/siherrmann/lexgraph/model"
)

// EmbeddingProvider turns text into fixed dimension vectors. The dimension
// must match the vector index.
type EmbeddingProvider interface {
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
	EncodePassages(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorSearchProvider returns the nearest passages to a query vector,
// best first.
type VectorSearchProvider interface {
	Search(ctx context.Context, queryVector []float32, limit int, filters model.Filters) ([]*model.VectorHit, error)
}

// GraphTraversalProvider returns chunks reachable from the seeds within
// maxDepth hops, excluding the seeds themselves.
type GraphTraversalProvider interface {
	FindRelated(ctx context.Context, seedIDs []string, maxDepth int, maxResults int) ([]*model.GraphHit, error)
}

// Monitor receives callbacks at each stage of one retrieval.
type Monitor interface {
	Start(query string)
	AfterVectorSearch(ids []string)
	AfterGraphTraversal(ids []string)
	End(results []*model.Candidate, err error)
}

type noopMonitor struct{}

func (noopMonitor) Start(string) {}
func (noopMonitor) AfterVectorSearch([]string) {}
func (noopMonitor) AfterGraphTraversal([]string) {}
func (noopMonitor) End([]*model.Candidate, error) {}
