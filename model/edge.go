package model

import (
	"time"

	"github.com/google/uuid"
)

// EdgeType represents the type of relationship between chunks
type EdgeType string

const (
	EdgeTypeReferences EdgeType = "references"
	EdgeTypeMentions   EdgeType = "mentions"
	EdgeTypeHasChild   EdgeType = "has_child"
	EdgeTypeContains   EdgeType = "contains"
	EdgeTypeCites      EdgeType = "cites"
	EdgeTypeRelatesTo  EdgeType = "relates_to"
)

func (t EdgeType) Valid() bool {
	switch t {
	case EdgeTypeReferences, EdgeTypeMentions, EdgeTypeHasChild,
		EdgeTypeContains, EdgeTypeCites, EdgeTypeRelatesTo:
		return true
	}
	return false
}

// EdgeTypeStrings converts edge types for a text[] parameter. nil stays nil.
func EdgeTypeStrings(types []EdgeType) []string {
	if types == nil {
		return nil
	}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// Edge represents a directed relationship between two chunks
type Edge struct {
	ID            uuid.UUID `json:"id"`
	SourceChunkID string    `json:"source_chunk_id"`
	TargetChunkID string    `json:"target_chunk_id"`
	EdgeType      EdgeType  `json:"edge_type"`
	Weight        float64   `json:"weight"`
	Bidirectional bool      `json:"bidirectional"`
	Metadata      Metadata  `json:"metadata,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
