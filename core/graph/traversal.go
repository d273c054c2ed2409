// Package graph walks the chunk graph in process over any GraphDB.
package graph

import (
	"context"
	"errors"
	"sort"

	"github.com/siherrmann/lexgraph/helper"
	"github.com/siherrmann/lexgraph/model"
)

// GraphDB defines the interface for graph operations
type GraphDB interface {
	GetChunk(ctx context.Context, id string) (*model.Chunk, error)
	GetEdgesFromChunk(ctx context.Context, chunkID string, edgeTypes []model.EdgeType, followBidirectional bool) ([]*model.Edge, error)
	GetEdgesConnectedToChunk(ctx context.Context, chunkID string, edgeTypes []model.EdgeType) ([]*model.Edge, error)
}

// TraversalResult contains a chunk and its distance from the nearest source
type TraversalResult struct {
	Chunk    *model.Chunk
	Distance int
	Path     []string // Path from source to this chunk
}

// BFS performs breadth-first search from a source chunk. The source is the
// first result at distance 0.
func BFS(ctx context.Context, db GraphDB, sourceID string, maxHops int, edgeTypes []model.EdgeType, followBidirectional bool) ([]*TraversalResult, error) {
	sourceChunk, err := db.GetChunk(ctx, sourceID)
	if err != nil {
		return nil, helper.NewError("get source chunk", err)
	}

	related, err := walk(ctx, db, sourceID, maxHops, edgeTypes, followBidirectional)
	if err != nil {
		return nil, err
	}

	results := make([]*TraversalResult, 0, len(related)+1)
	results = append(results, &TraversalResult{Chunk: sourceChunk, Distance: 0, Path: []string{sourceID}})
	return append(results, related...), nil
}

// GetNeighbors retrieves immediate neighbors (1-hop) of a chunk
func GetNeighbors(ctx context.Context, db GraphDB, chunkID string, edgeTypes []model.EdgeType, followBidirectional bool) ([]*model.Chunk, error) {
	related, err := walk(ctx, db, chunkID, 1, edgeTypes, followBidirectional)
	if err != nil {
		return nil, err
	}

	neighbors := make([]*model.Chunk, 0, len(related))
	for _, r := range related {
		neighbors = append(neighbors, r.Chunk)
	}
	return neighbors, nil
}

// walk runs a directed breadth-first search and returns the reached chunks
// in discovery order, source excluded. Edges to chunks that do not exist
// are skipped, any other lookup error is returned.
func walk(ctx context.Context, db GraphDB, sourceID string, maxHops int, edgeTypes []model.EdgeType, followBidirectional bool) ([]*TraversalResult, error) {
	visited := map[string]bool{sourceID: true}
	queue := []*TraversalResult{{Distance: 0, Path: []string{sourceID}}}

	var results []*TraversalResult

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		// Stop if we've reached max hops
		if current.Distance >= maxHops {
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		currentID := current.Path[len(current.Path)-1]
		edges, err := db.GetEdgesFromChunk(ctx, currentID, edgeTypes, followBidirectional)
		if err != nil {
			return nil, helper.NewError("get edges from chunk", err)
		}

		for _, edge := range edges {
			targetID, ok := neighbor(edge, currentID, edgeTypes, followBidirectional)
			if !ok || visited[targetID] {
				continue
			}

			targetChunk, err := loadChunk(ctx, db, targetID)
			if err != nil {
				return nil, err
			}
			visited[targetID] = true
			if targetChunk == nil {
				continue
			}

			newPath := make([]string, len(current.Path), len(current.Path)+1)
			copy(newPath, current.Path)
			newPath = append(newPath, targetID)

			next := &TraversalResult{
				Chunk:    targetChunk,
				Distance: current.Distance + 1,
				Path:     newPath,
			}
			results = append(results, next)
			queue = append(queue, next)
		}
	}

	return results, nil
}

// neighbor returns the chunk an edge leads to from currentID. Incoming
// edges are only followed when bidirectional and followBidirectional is set.
func neighbor(edge *model.Edge, currentID string, edgeTypes []model.EdgeType, followBidirectional bool) (string, bool) {
	if edge == nil || edge.SourceChunkID == "" || edge.TargetChunkID == "" {
		return "", false
	}
	if len(edgeTypes) > 0 && !containsEdgeType(edgeTypes, edge.EdgeType) {
		return "", false
	}

	switch {
	case edge.SourceChunkID == currentID:
		return edge.TargetChunkID, true
	case followBidirectional && edge.Bidirectional && edge.TargetChunkID == currentID:
		return edge.SourceChunkID, true
	}
	return "", false
}

// loadChunk returns nil without error for a chunk that does not exist.
func loadChunk(ctx context.Context, db GraphDB, id string) (*model.Chunk, error) {
	chunk, err := db.GetChunk(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("get chunk", err)
	}
	return chunk, nil
}

func containsEdgeType(types []model.EdgeType, t model.EdgeType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// Traverser finds chunks related to a seed set. Unlike BFS it follows every
// edge in both directions, so a passage reaches its parent and siblings.
type Traverser struct {
	db        GraphDB
	edgeTypes []model.EdgeType
	score     func(distance int) float64
}

// TraverserOption configures a Traverser.
type TraverserOption func(*Traverser)

// WithEdgeTypes restricts the followed edges. Default is all types.
func WithEdgeTypes(edgeTypes ...model.EdgeType) TraverserOption {
	return func(t *Traverser) {
		t.edgeTypes = edgeTypes
	}
}

// WithScoreFunc replaces the default 1/(1+distance) decay.
func WithScoreFunc(score func(distance int) float64) TraverserOption {
	return func(t *Traverser) {
		if score != nil {
			t.score = score
		}
	}
}

func NewTraverser(db GraphDB, opts ...TraverserOption) *Traverser {
	t := &Traverser{
		db:    db,
		score: model.PathScore,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// FindRelated returns up to maxResults chunks within maxDepth hops of a
// seed, ordered by score and then chunk id. Every seed walks on its own and
// only its own start is excluded, so a seed reached from another seed is
// returned with that distance.
func (t *Traverser) FindRelated(ctx context.Context, seedIDs []string, maxDepth int, maxResults int) ([]*model.GraphHit, error) {
	if len(seedIDs) == 0 || maxDepth < 1 || maxResults < 1 {
		return []*model.GraphHit{}, nil
	}

	e := &expansion{
		db:        t.db,
		edgeTypes: t.edgeTypes,
		edges:     map[string][]*model.Edge{},
		chunks:    map[string]*model.Chunk{},
	}

	nearest := map[string]int{}
	started := make(map[string]bool, len(seedIDs))
	for _, seed := range seedIDs {
		if started[seed] {
			continue
		}
		started[seed] = true

		distances, err := e.from(ctx, seed, maxDepth)
		if err != nil {
			return nil, err
		}
		for id, distance := range distances {
			if current, ok := nearest[id]; !ok || distance < current {
				nearest[id] = distance
			}
		}
	}

	hits := make([]*model.GraphHit, 0, len(nearest))
	for id, distance := range nearest {
		chunk := *e.chunks[id]
		chunk.Distance = distance
		hits = append(hits, chunk.ToGraphHit(t.score))
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].PathScore != hits[j].PathScore {
			return hits[i].PathScore > hits[j].PathScore
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return hits, nil
}

// expansion caches edges and chunks across the walks of one FindRelated call.
type expansion struct {
	db        GraphDB
	edgeTypes []model.EdgeType
	edges     map[string][]*model.Edge
	chunks    map[string]*model.Chunk
}

// from returns the hop distance of every existing chunk reachable from
// origin within maxDepth, origin excluded.
func (e *expansion) from(ctx context.Context, origin string, maxDepth int) (map[string]int, error) {
	distances := map[string]int{}
	visited := map[string]bool{origin: true}
	queue := []string{origin}

	for distance := 0; distance < maxDepth && len(queue) > 0; distance++ {
		var next []string
		for _, currentID := range queue {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			edges, err := e.connected(ctx, currentID)
			if err != nil {
				return nil, err
			}

			for _, edge := range edges {
				otherID, ok := otherEnd(edge, currentID, e.edgeTypes)
				if !ok || visited[otherID] {
					continue
				}
				visited[otherID] = true

				chunk, err := e.chunk(ctx, otherID)
				if err != nil {
					return nil, err
				}
				if chunk == nil {
					continue
				}
				distances[otherID] = distance + 1
				next = append(next, otherID)
			}
		}
		queue = next
	}

	return distances, nil
}

func (e *expansion) connected(ctx context.Context, chunkID string) ([]*model.Edge, error) {
	if edges, ok := e.edges[chunkID]; ok {
		return edges, nil
	}
	edges, err := e.db.GetEdgesConnectedToChunk(ctx, chunkID, e.edgeTypes)
	if err != nil {
		return nil, helper.NewError("get edges connected to chunk", err)
	}
	e.edges[chunkID] = edges
	return edges, nil
}

func (e *expansion) chunk(ctx context.Context, id string) (*model.Chunk, error) {
	if chunk, ok := e.chunks[id]; ok {
		return chunk, nil
	}
	chunk, err := loadChunk(ctx, e.db, id)
	if err != nil {
		return nil, err
	}
	e.chunks[id] = chunk
	return chunk, nil
}

// otherEnd returns the chunk at the far end of an edge touching currentID.
func otherEnd(edge *model.Edge, currentID string, edgeTypes []model.EdgeType) (string, bool) {
	if edge == nil || edge.SourceChunkID == "" || edge.TargetChunkID == "" {
		return "", false
	}
	if len(edgeTypes) > 0 && !containsEdgeType(edgeTypes, edge.EdgeType) {
		return "", false
	}

	switch currentID {
	case edge.SourceChunkID:
		return edge.TargetChunkID, true
	case edge.TargetChunkID:
		return edge.SourceChunkID, true
	}
	return "", false
}
