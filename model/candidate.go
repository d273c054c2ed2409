package model

// Candidate is a unit of retrievable content during one retrieval call.
// Only the score fields change after construction.
type Candidate struct {
	ID               string           `json:"id"`
	ParentDocumentID string           `json:"parent_document_id"`
	Text             string           `json:"text"`
	HierarchyPath    string           `json:"hierarchy_path,omitempty"`
	VectorScore      float64          `json:"vector_score"`
	GraphScore       float64          `json:"graph_score"`
	FinalScore       float64          `json:"final_score"`
	Metadata         CitationMetadata `json:"metadata"`
}

// Copy returns a candidate that shares no mutable state with c.
func (c *Candidate) Copy() *Candidate {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Metadata = c.Metadata.Copy()
	return &cp
}

// CandidateIDs returns the ids in slice order.
func CandidateIDs(candidates []*Candidate) []string {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	return ids
}
