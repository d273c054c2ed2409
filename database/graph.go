package database

import (
	"context"

	"github.com/siherrmann/lexgraph/model"
)

// GraphStore exposes the chunks and edges tables as a graph.GraphDB for
// the in-process traverser.
type GraphStore struct {
	chunks *ChunksDBHandler
	edges  *EdgesDBHandler
}

func NewGraphStore(chunks *ChunksDBHandler, edges *EdgesDBHandler) *GraphStore {
	return &GraphStore{chunks: chunks, edges: edges}
}

func (s *GraphStore) GetChunk(ctx context.Context, id string) (*model.Chunk, error) {
	return s.chunks.SelectChunk(ctx, id)
}

func (s *GraphStore) GetEdgesFromChunk(ctx context.Context, chunkID string, edgeTypes []model.EdgeType, followBidirectional bool) ([]*model.Edge, error) {
	return s.edges.SelectEdgesFromChunk(ctx, chunkID, edgeTypes, followBidirectional)
}

func (s *GraphStore) GetEdgesConnectedToChunk(ctx context.Context, chunkID string, edgeTypes []model.EdgeType) ([]*model.Edge, error) {
	return s.edges.SelectEdgesConnectedToChunk(ctx, chunkID, edgeTypes)
}
