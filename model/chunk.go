package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when a chunk, document or edge does not
// exist.
var ErrNotFound = errors.New("not found")

// Chunk is a stored passage: a node of the chunk graph and a row of the
// vector index.
type Chunk struct {
	ID            int64     `json:"id"`
	ChunkID       string    `json:"chunk_id"`
	DocumentID    int64     `json:"document_id"`
	DocumentRID   uuid.UUID `json:"document_rid"`
	Text          string    `json:"text"`
	HierarchyPath string    `json:"hierarchy_path,omitempty"`
	Embedding     []float32 `json:"embedding,omitempty"`
	Metadata      Metadata  `json:"metadata,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	// Results
	Similarity float64 `json:"similarity,omitempty"`
	Distance   int     `json:"distance,omitempty"`
}

// ToVectorHit converts a similarity search row.
func (c *Chunk) ToVectorHit() *VectorHit {
	return &VectorHit{
		ID:    c.ChunkID,
		Score: c.Similarity,
		Payload: &HitPayload{
			ChunkID:       c.ChunkID,
			DocumentID:    c.DocumentRID.String(),
			Text:          c.Text,
			HierarchyPath: c.HierarchyPath,
			Metadata:      NewCitationMetadata(c.Metadata),
		},
	}
}

// ToGraphHit converts a traversal row using the given distance decay.
func (c *Chunk) ToGraphHit(score func(distance int) float64) *GraphHit {
	if score == nil {
		score = PathScore
	}
	return &GraphHit{
		ID:            c.ChunkID,
		DocumentID:    c.DocumentRID.String(),
		Text:          c.Text,
		HierarchyPath: c.HierarchyPath,
		Distance:      c.Distance,
		PathScore:     score(c.Distance),
		Metadata:      NewCitationMetadata(c.Metadata),
	}
}
