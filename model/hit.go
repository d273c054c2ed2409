package model

// VectorHit is one nearest neighbour returned by a vector search provider.
type VectorHit struct {
	ID      string      `json:"id"`
	Score   float64     `json:"score"`
	Payload *HitPayload `json:"payload"`
}

// HitPayload carries what a vector search provider stores next to the vector.
type HitPayload struct {
	ChunkID       string           `json:"chunkId"`
	DocumentID    string           `json:"documentId"`
	Text          string           `json:"text"`
	HierarchyPath string           `json:"hierarchyPath"`
	Metadata      CitationMetadata `json:"metadata"`
}

// GraphHit is one chunk reached by graph traversal from the seed set.
// PathScore decreases monotonically with Distance.
type GraphHit struct {
	ID            string           `json:"id"`
	DocumentID    string           `json:"documentId"`
	Text          string           `json:"text"`
	HierarchyPath string           `json:"hierarchyPath"`
	Distance      int              `json:"distance"`
	PathScore     float64          `json:"pathScore"`
	Metadata      CitationMetadata `json:"metadata"`
}

// PathScore is the default distance decay, 1/(1+distance).
func PathScore(distance int) float64 {
	return 1.0 / (1.0 + float64(distance))
}

// ToCandidate converts a vector hit into a candidate with only the vector
// score set. Hits without payload keep their id and score.
func (h *VectorHit) ToCandidate() *Candidate {
	c := &Candidate{ID: h.ID, VectorScore: h.Score}
	if h.Payload != nil {
		c.ParentDocumentID = h.Payload.DocumentID
		c.Text = h.Payload.Text
		c.HierarchyPath = h.Payload.HierarchyPath
		c.Metadata = h.Payload.Metadata.Copy()
		if c.ID == "" {
			c.ID = h.Payload.ChunkID
		}
	}
	return c
}

// ToCandidate converts a graph hit into a candidate with only the graph
// score set.
func (h *GraphHit) ToCandidate() *Candidate {
	return &Candidate{
		ID:               h.ID,
		ParentDocumentID: h.DocumentID,
		Text:             h.Text,
		HierarchyPath:    h.HierarchyPath,
		GraphScore:       h.PathScore,
		Metadata:         h.Metadata.Copy(),
	}
}
