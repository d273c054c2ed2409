package graph

import (
	"context"
	"testing"

	"github.com/siherrmann/lexgraph/core/fusion"
	"github.com/siherrmann/lexgraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockGraphDB is a mock implementation of GraphDB for testing
type MockGraphDB struct {
	chunks map[string]*model.Chunk
	edges  map[string][]*model.Edge
	err    error
	// broken chunks fail to load with assert.AnError
	broken map[string]bool
}

func NewMockGraphDB() *MockGraphDB {
	return &MockGraphDB{
		chunks: make(map[string]*model.Chunk),
		edges:  make(map[string][]*model.Edge),
		broken: make(map[string]bool),
	}
}

func (m *MockGraphDB) GetChunk(ctx context.Context, id string) (*model.Chunk, error) {
	if m.broken[id] {
		return nil, assert.AnError
	}
	chunk, ok := m.chunks[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return chunk, nil
}

func (m *MockGraphDB) GetEdgesFromChunk(ctx context.Context, chunkID string, edgeTypes []model.EdgeType, followBidirectional bool) ([]*model.Edge, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.edges[chunkID], nil
}

func (m *MockGraphDB) GetEdgesConnectedToChunk(ctx context.Context, chunkID string, edgeTypes []model.EdgeType) ([]*model.Edge, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.edges[chunkID], nil
}

func (m *MockGraphDB) addChunk(id string) {
	m.chunks[id] = &model.Chunk{ChunkID: id, Text: "Chunk " + id, HierarchyPath: "Law > " + id}
}

// addEdge registers the edge with both endpoints, like a database would.
func (m *MockGraphDB) addEdge(source, target string, edgeType model.EdgeType, bidirectional bool) {
	edge := &model.Edge{SourceChunkID: source, TargetChunkID: target, EdgeType: edgeType, Bidirectional: bidirectional}
	m.edges[source] = append(m.edges[source], edge)
	m.edges[target] = append(m.edges[target], edge)
}

func hitIDs(hits []*model.GraphHit) []string {
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids
}

func chunkIDs(results []*TraversalResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Chunk.ChunkID)
	}
	return ids
}

// newLawGraph builds
//
//	A -> B -> C
//	A -> D
//	E <-> B (bidirectional, cites)
func newLawGraph() *MockGraphDB {
	db := NewMockGraphDB()
	for _, id := range []string{"A", "B", "C", "D", "E", "F"} {
		db.addChunk(id)
	}
	db.addEdge("A", "B", model.EdgeTypeHasChild, false)
	db.addEdge("B", "C", model.EdgeTypeHasChild, false)
	db.addEdge("A", "D", model.EdgeTypeReferences, false)
	db.addEdge("E", "B", model.EdgeTypeCites, true)
	return db
}

func TestBFS(t *testing.T) {
	ctx := context.Background()
	db := newLawGraph()

	t.Run("BFS from source with max hops 1", func(t *testing.T) {
		results, err := BFS(ctx, db, "A", 1, nil, false)

		require.NoError(t, err, "Expected BFS to not return an error")
		assert.Equal(t, []string{"A", "B", "D"}, chunkIDs(results))
		assert.Equal(t, 0, results[0].Distance, "Expected source at distance 0")
		assert.Equal(t, []string{"A", "B"}, results[1].Path)
	})

	t.Run("BFS from source with max hops 2", func(t *testing.T) {
		results, err := BFS(ctx, db, "A", 2, nil, false)

		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "D", "C"}, chunkIDs(results))
		assert.Equal(t, 2, results[3].Distance)
	})

	t.Run("BFS with edge type filter", func(t *testing.T) {
		results, err := BFS(ctx, db, "A", 3, []model.EdgeType{model.EdgeTypeReferences}, false)

		require.NoError(t, err)
		assert.Equal(t, []string{"A", "D"}, chunkIDs(results))
	})

	t.Run("BFS with max hops 0", func(t *testing.T) {
		results, err := BFS(ctx, db, "A", 0, nil, false)

		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, chunkIDs(results))
	})

	t.Run("BFS from isolated node", func(t *testing.T) {
		results, err := BFS(ctx, db, "F", 3, nil, true)

		require.NoError(t, err)
		assert.Equal(t, []string{"F"}, chunkIDs(results))
	})

	t.Run("BFS from unknown source", func(t *testing.T) {
		_, err := BFS(ctx, db, "missing", 1, nil, false)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("BFS bidirectional backward traversal (target to source)", func(t *testing.T) {
		results, err := BFS(ctx, db, "B", 1, nil, true)

		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"B", "C", "E"}, chunkIDs(results), "Expected E via bidirectional edge")
	})

	t.Run("BFS does not follow incoming edges without flag", func(t *testing.T) {
		results, err := BFS(ctx, db, "B", 1, nil, false)

		require.NoError(t, err)
		assert.Equal(t, []string{"B", "C"}, chunkIDs(results))
	})

	t.Run("BFS never walks a directed edge backwards", func(t *testing.T) {
		results, err := BFS(ctx, db, "C", 3, nil, true)

		require.NoError(t, err)
		assert.Equal(t, []string{"C"}, chunkIDs(results))
	})

	t.Run("BFS skips edges to missing chunks", func(t *testing.T) {
		broken := newLawGraph()
		broken.addEdge("A", "ghost", model.EdgeTypeReferences, false)

		results, err := BFS(ctx, broken, "A", 1, nil, false)

		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "D"}, chunkIDs(results))
	})

	t.Run("BFS propagates chunk lookup errors", func(t *testing.T) {
		failing := newLawGraph()
		failing.broken["D"] = true

		_, err := BFS(ctx, failing, "A", 1, nil, false)
		assert.ErrorIs(t, err, assert.AnError, "Expected a failed lookup not to be treated as a missing chunk")
	})

	t.Run("BFS propagates edge errors", func(t *testing.T) {
		failing := newLawGraph()
		failing.err = assert.AnError

		_, err := BFS(ctx, failing, "A", 1, nil, false)
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestGetNeighbors(t *testing.T) {
	ctx := context.Background()
	db := newLawGraph()

	t.Run("Get neighbors of source chunk", func(t *testing.T) {
		neighbors, err := GetNeighbors(ctx, db, "A", nil, true)

		require.NoError(t, err)
		require.Len(t, neighbors, 2)
		assert.Equal(t, "B", neighbors[0].ChunkID)
		assert.Equal(t, "D", neighbors[1].ChunkID)
	})

	t.Run("Get neighbors of isolated chunk", func(t *testing.T) {
		neighbors, err := GetNeighbors(ctx, db, "F", nil, true)

		require.NoError(t, err)
		assert.Empty(t, neighbors)
	})
}

func TestTraverserFindRelated(t *testing.T) {
	ctx := context.Background()

	t.Run("Each seed is excluded only from its own walk", func(t *testing.T) {
		traverser := NewTraverser(newLawGraph())

		hits, err := traverser.FindRelated(ctx, []string{"A", "C"}, 3, 50)

		require.NoError(t, err)
		assert.Equal(t, []string{"B", "D", "A", "C", "E"}, hitIDs(hits), "Expected score order with ties by chunk id")
		assert.Equal(t, 1, hits[0].Distance)
		assert.Equal(t, 0.5, hits[0].PathScore)
		assert.Equal(t, 2, hits[2].Distance, "Expected seed A two hops from seed C")
		assert.Equal(t, 2, hits[3].Distance, "Expected seed C two hops from seed A")
		assert.Equal(t, 2, hits[4].Distance, "Expected E two hops from A via B")
		assert.InDelta(t, 1.0/3.0, hits[4].PathScore, 1e-12)
		assert.Equal(t, "Chunk B", hits[0].Text)
		assert.Equal(t, "Law > B", hits[0].HierarchyPath)
	})

	t.Run("Seed referenced by another seed gets a graph score", func(t *testing.T) {
		db := NewMockGraphDB()
		for _, id := range []string{"A", "B", "C", "P"} {
			db.addChunk(id)
		}
		db.addEdge("A", "B", model.EdgeTypeReferences, false)
		db.addEdge("P", "C", model.EdgeTypeHasChild, false)

		hits, err := NewTraverser(db).FindRelated(ctx, []string{"A", "B", "C"}, 1, 50)

		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "P"}, hitIDs(hits), "Expected linked seeds and the parent of C")

		vector := []*model.Candidate{
			{ID: "A", VectorScore: 0.9},
			{ID: "B", VectorScore: 0.8},
			{ID: "C", VectorScore: 0.7},
		}
		graph := make([]*model.Candidate, 0, len(hits))
		for _, h := range hits {
			graph = append(graph, h.ToCandidate())
		}
		merged := fusion.Merge(vector, graph)
		require.Len(t, merged, 4)
		assert.Equal(t, "B", merged[1].ID)
		assert.Equal(t, 0.5, merged[1].GraphScore, "Expected B to keep the graph score from A")
		assert.Zero(t, merged[2].GraphScore, "Expected C without a linked seed to have no graph score")
		assert.Equal(t, "P", merged[3].ID)
	})

	t.Run("Parent and siblings are reachable", func(t *testing.T) {
		db := NewMockGraphDB()
		for _, id := range []string{"P", "X", "Y", "Z"} {
			db.addChunk(id)
		}
		db.addEdge("P", "X", model.EdgeTypeHasChild, false)
		db.addEdge("P", "Y", model.EdgeTypeHasChild, false)
		db.addEdge("P", "Z", model.EdgeTypeHasChild, false)

		hits, err := NewTraverser(db).FindRelated(ctx, []string{"Y"}, 2, 50)

		require.NoError(t, err)
		assert.Equal(t, []string{"P", "X", "Z"}, hitIDs(hits))
		assert.Equal(t, 1, hits[0].Distance, "Expected the parent one hop up")
		assert.Equal(t, 2, hits[1].Distance, "Expected siblings two hops away")
	})

	t.Run("Result cap", func(t *testing.T) {
		hits, err := NewTraverser(newLawGraph()).FindRelated(ctx, []string{"A"}, 3, 2)

		require.NoError(t, err)
		assert.Equal(t, []string{"B", "D"}, hitIDs(hits))
	})

	t.Run("Depth limit", func(t *testing.T) {
		hits, err := NewTraverser(newLawGraph()).FindRelated(ctx, []string{"A"}, 1, 50)

		require.NoError(t, err)
		assert.Equal(t, []string{"B", "D"}, hitIDs(hits))
	})

	t.Run("Empty seeds and zero limits", func(t *testing.T) {
		traverser := NewTraverser(newLawGraph())

		for _, tc := range []struct {
			seeds      []string
			depth, max int
		}{{nil, 3, 50}, {[]string{"A"}, 0, 50}, {[]string{"A"}, 3, 0}} {
			hits, err := traverser.FindRelated(ctx, tc.seeds, tc.depth, tc.max)
			require.NoError(t, err)
			assert.NotNil(t, hits)
			assert.Empty(t, hits)
		}
	})

	t.Run("Edge type restriction", func(t *testing.T) {
		traverser := NewTraverser(newLawGraph(), WithEdgeTypes(model.EdgeTypeHasChild))

		hits, err := traverser.FindRelated(ctx, []string{"A"}, 3, 50)
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "C"}, hitIDs(hits))

		hits, err = traverser.FindRelated(ctx, []string{"C"}, 3, 50)
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "A"}, hitIDs(hits), "Expected the chain walked upwards from the leaf")
	})

	t.Run("Custom score function reorders", func(t *testing.T) {
		traverser := NewTraverser(newLawGraph(), WithScoreFunc(func(d int) float64 { return float64(d) }))

		hits, err := traverser.FindRelated(ctx, []string{"A"}, 2, 50)

		require.NoError(t, err)
		assert.Equal(t, []string{"C", "E", "B", "D"}, hitIDs(hits), "Expected farthest nodes first with increasing score")
	})

	t.Run("Missing chunks are skipped", func(t *testing.T) {
		db := newLawGraph()
		db.addEdge("A", "ghost", model.EdgeTypeReferences, false)

		hits, err := NewTraverser(db).FindRelated(ctx, []string{"A"}, 1, 50)

		require.NoError(t, err)
		assert.Equal(t, []string{"B", "D"}, hitIDs(hits))
	})

	t.Run("Chunk lookup errors propagate", func(t *testing.T) {
		db := newLawGraph()
		db.broken["D"] = true

		_, err := NewTraverser(db).FindRelated(ctx, []string{"A"}, 1, 50)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("Edge errors propagate", func(t *testing.T) {
		db := newLawGraph()
		db.err = assert.AnError

		_, err := NewTraverser(db).FindRelated(ctx, []string{"A"}, 1, 50)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := NewTraverser(newLawGraph()).FindRelated(cancelled, []string{"A"}, 3, 50)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
