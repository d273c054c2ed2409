// Package fusion merges vector and graph candidates into one ranked,
// deduplicated and diversified list.
package fusion

import (
	"sort"

	"github.com/siherrmann/lexgraph/model"
)

// Fuse merges vectorResults and graphResults by id, scores every entry as
// vectorWeight*VectorScore + graphWeight*GraphScore and returns at most
// topK diverse candidates ordered by that score.
//
// Ties keep first-seen order: vector results in input order, then graph
// results not found by vector search. A duplicate id inside vectorResults
// keeps its first occurrence; inside graphResults the highest graph score
// wins. The inputs are not modified.
func Fuse(vectorResults, graphResults []*model.Candidate, topK int, vectorWeight, graphWeight, diversityThreshold float64) []*model.Candidate {
	if topK < 1 {
		return []*model.Candidate{}
	}

	merged := Merge(vectorResults, graphResults)
	for _, c := range merged {
		c.FinalScore = vectorWeight*c.VectorScore + graphWeight*c.GraphScore
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].FinalScore > merged[j].FinalScore
	})

	return SelectDiverse(merged, topK, diversityThreshold)
}

// Merge returns copies of all candidates keyed by id, in insertion order.
// Scores are not combined yet.
func Merge(vectorResults, graphResults []*model.Candidate) []*model.Candidate {
	byID := make(map[string]*model.Candidate, len(vectorResults)+len(graphResults))
	ordered := make([]*model.Candidate, 0, len(vectorResults)+len(graphResults))
	fromGraph := map[string]bool{}

	for _, v := range vectorResults {
		if v == nil {
			continue
		}
		if _, ok := byID[v.ID]; ok {
			continue
		}
		c := v.Copy()
		c.GraphScore = 0
		byID[c.ID] = c
		ordered = append(ordered, c)
	}

	for _, g := range graphResults {
		if g == nil {
			continue
		}
		existing, ok := byID[g.ID]
		if !ok {
			c := g.Copy()
			c.VectorScore = 0
			byID[c.ID] = c
			fromGraph[c.ID] = true
			ordered = append(ordered, c)
			continue
		}
		if !fromGraph[g.ID] || g.GraphScore > existing.GraphScore {
			existing.GraphScore = g.GraphScore
			fromGraph[g.ID] = true
		}
	}

	return ordered
}
