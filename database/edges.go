package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/lexgraph/helper"
	"github.com/siherrmann/lexgraph/model"
	loadSql "github.com/siherrmann/lexgraph/sql"
)

// EdgesDBHandlerFunctions defines the interface for Edges database operations.
type EdgesDBHandlerFunctions interface {
	InsertEdge(ctx context.Context, edge *model.Edge) error
	SelectEdgesFromChunk(ctx context.Context, chunkID string, edgeTypes []model.EdgeType, followBidirectional bool) ([]*model.Edge, error)
	SelectEdgesConnectedToChunk(ctx context.Context, chunkID string, edgeTypes []model.EdgeType) ([]*model.Edge, error)
	DeleteEdge(ctx context.Context, id uuid.UUID) error
	SelectRelatedChunks(ctx context.Context, seedIDs []string, maxDepth int, maxResults int) ([]*model.Chunk, error)
	FindRelated(ctx context.Context, seedIDs []string, maxDepth int, maxResults int) ([]*model.GraphHit, error)
}

// EdgesDBHandler handles edge-related database operations.
// It is the graph index of the retrieval engine.
type EdgesDBHandler struct {
	db        *helper.Database
	edgeTypes []model.EdgeType
}

// NewEdgesDBHandler creates a new edges database handler.
// The chunks table has to exist before. Traversals follow only the given
// edge types, all types if none are given.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEdgesDBHandler(db *helper.Database, force bool, edgeTypes ...model.EdgeType) (*EdgesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	for _, edgeType := range edgeTypes {
		if !edgeType.Valid() {
			return nil, helper.NewError("edge type validation", fmt.Errorf("unknown edge type %q", edgeType))
		}
	}

	edgesDbHandler := &EdgesDBHandler{
		db:        db,
		edgeTypes: edgeTypes,
	}

	err := loadSql.LoadEdgesSql(edgesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load edges sql", err)
	}

	err = edgesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EdgesDBHandler")

	return edgesDbHandler, nil
}

// CreateTable creates the 'edges' table and its indexes if missing.
func (h *EdgesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_edges();`)
	if err != nil {
		return helper.NewError("init edges", err)
	}

	h.db.Logger.Info("Checked/created table edges")

	return nil
}

// InsertEdge inserts an edge, an existing edge with the same endpoints and
// type is updated.
func (h *EdgesDBHandler) InsertEdge(ctx context.Context, edge *model.Edge) error {
	if !edge.EdgeType.Valid() {
		return helper.NewError("edge validation", fmt.Errorf("unknown edge type %q", edge.EdgeType))
	}
	if edge.Weight == 0 {
		edge.Weight = 1.0
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_edge($1, $2, $3, $4, $5, $6)`,
		edge.SourceChunkID,
		edge.TargetChunkID,
		string(edge.EdgeType),
		edge.Weight,
		edge.Bidirectional,
		edge.Metadata,
	)

	err := scanEdge(row, edge)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectEdgesFromChunk retrieves the outgoing edges of a chunk, and the
// incoming bidirectional ones if followBidirectional is set.
func (h *EdgesDBHandler) SelectEdgesFromChunk(ctx context.Context, chunkID string, edgeTypes []model.EdgeType, followBidirectional bool) ([]*model.Edge, error) {
	return h.queryEdges(
		ctx,
		`SELECT * FROM select_edges_from_chunk($1, $2, $3)`,
		chunkID,
		pq.Array(model.EdgeTypeStrings(edgeTypes)),
		followBidirectional,
	)
}

// SelectEdgesConnectedToChunk retrieves every edge with the chunk at either end.
func (h *EdgesDBHandler) SelectEdgesConnectedToChunk(ctx context.Context, chunkID string, edgeTypes []model.EdgeType) ([]*model.Edge, error) {
	return h.queryEdges(
		ctx,
		`SELECT * FROM select_edges_connected_to_chunk($1, $2)`,
		chunkID,
		pq.Array(model.EdgeTypeStrings(edgeTypes)),
	)
}

func (h *EdgesDBHandler) queryEdges(ctx context.Context, query string, args ...any) ([]*model.Edge, error) {
	rows, err := h.db.Instance.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	edges := []*model.Edge{}
	for rows.Next() {
		edge := &model.Edge{}
		if err := scanEdge(rows, edge); err != nil {
			return nil, helper.NewError("scan", err)
		}
		edges = append(edges, edge)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return edges, nil
}

// DeleteEdge deletes an edge by ID
func (h *EdgesDBHandler) DeleteEdge(ctx context.Context, id uuid.UUID) error {
	var deleted int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_edge($1)`,
		id,
	).Scan(&deleted)
	if err != nil {
		return helper.NewError("exec", err)
	}
	if deleted == 0 {
		return helper.NewError("delete edge", fmt.Errorf("%w: edge %s", ErrNotFound, id))
	}
	return nil
}

// SelectRelatedChunks expands from all seeds inside the database, following
// edges in both directions. Every chunk is returned once with its minimum
// distance to any seed other than itself, nearest first and ties by chunk id.
func (h *EdgesDBHandler) SelectRelatedChunks(ctx context.Context, seedIDs []string, maxDepth int, maxResults int) ([]*model.Chunk, error) {
	if len(seedIDs) == 0 || maxDepth < 1 || maxResults < 1 {
		return []*model.Chunk{}, nil
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_related_chunks($1, $2, $3, $4)`,
		pq.Array(seedIDs),
		maxDepth,
		maxResults,
		pq.Array(model.EdgeTypeStrings(h.edgeTypes)),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	chunks := []*model.Chunk{}
	for rows.Next() {
		chunk := &model.Chunk{}
		err := rows.Scan(
			&chunk.ID,
			&chunk.ChunkID,
			&chunk.DocumentID,
			&chunk.DocumentRID,
			&chunk.Text,
			&chunk.HierarchyPath,
			&chunk.Metadata,
			&chunk.CreatedAt,
			&chunk.Distance,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// FindRelated implements the graph traversal provider. Scores decay with
// distance as 1/(1+d), so the distance order is also the score order.
func (h *EdgesDBHandler) FindRelated(ctx context.Context, seedIDs []string, maxDepth int, maxResults int) ([]*model.GraphHit, error) {
	chunks, err := h.SelectRelatedChunks(ctx, seedIDs, maxDepth, maxResults)
	if err != nil {
		return nil, helper.NewError("related chunks", err)
	}

	hits := make([]*model.GraphHit, 0, len(chunks))
	for _, chunk := range chunks {
		hits = append(hits, chunk.ToGraphHit(model.PathScore))
	}

	return hits, nil
}

func scanEdge(row scanner, edge *model.Edge) error {
	var edgeType string
	err := row.Scan(
		&edge.ID,
		&edge.SourceChunkID,
		&edge.TargetChunkID,
		&edgeType,
		&edge.Weight,
		&edge.Bidirectional,
		&edge.Metadata,
		&edge.CreatedAt,
	)
	if err != nil {
		return err
	}
	edge.EdgeType = model.EdgeType(edgeType)
	return nil
}
