package retrieval

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned before any provider call for a blank or
	// too short query, topK below one or malformed filters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRetrievalFailure matches every *RetrievalFailure.
	ErrRetrievalFailure = errors.New("retrieval failure")

	ErrEmbeddingProviderRequired    = errors.New("embedding provider required")
	ErrVectorSearchProviderRequired = errors.New("vector search provider required")
	ErrGraphProviderRequired        = errors.New("graph traversal provider required")
)

// Provider stages reported by RetrievalFailure. Query embedding belongs to
// the vector stage.
const (
	StageVector = "vector"
	StageGraph  = "graph"
)

// RetrievalFailure reports a failed provider call and the stage it belongs to.
type RetrievalFailure struct {
	Stage string
	Err   error
}

func (e *RetrievalFailure) Error() string {
	return fmt.Sprintf("retrieval failure in %s: %v", e.Stage, e.Err)
}

func (e *RetrievalFailure) Unwrap() error {
	return e.Err
}

func (e *RetrievalFailure) Is(target error) bool {
	return target == ErrRetrievalFailure
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
