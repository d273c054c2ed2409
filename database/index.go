package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/lexgraph/helper"
)

// Vector index types of the chunks embedding column.
const (
	IndexTypeHNSW    = "hnsw"
	IndexTypeIVFFlat = "ivfflat"
)

// ChangeIndexType rebuilds the cosine index of the embedding column.
// params:
//   - hnsw: "m" (default 16), "ef_construction" (default 64)
//   - ivfflat: "lists" (default 100)
func (h *ChunksDBHandler) ChangeIndexType(ctx context.Context, indexType string, params map[string]int) error {
	var createIndexSQL string
	switch indexType {
	case IndexTypeHNSW:
		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			paramOrDefault(params, "m", 16),
			paramOrDefault(params, "ef_construction", 64),
		)
	case IndexTypeIVFFlat:
		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			paramOrDefault(params, "lists", 100),
		)
	default:
		return helper.NewError("change index type", fmt.Errorf("unsupported index type: %s (use '%s' or '%s')", indexType, IndexTypeHNSW, IndexTypeIVFFlat))
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `DROP INDEX IF EXISTS idx_chunks_embedding;`)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	_, err = tx.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit", err)
	}

	h.db.Logger.Info("Changed vector index", "type", indexType, "params", params)

	return nil
}

func paramOrDefault(params map[string]int, key string, fallback int) int {
	if value, ok := params[key]; ok && value > 0 {
		return value
	}
	return fallback
}
