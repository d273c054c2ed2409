package fusion

import (
	"strings"

	"github.com/siherrmann/lexgraph/model"
)

// SelectDiverse walks sorted and keeps a candidate unless its text equals
// the text of an already selected candidate or its Overlap with one of them
// exceeds threshold. The first candidate is always kept. At most topK
// candidates are returned.
func SelectDiverse(sorted []*model.Candidate, topK int, threshold float64) []*model.Candidate {
	selected := []*model.Candidate{}
	if topK < 1 {
		return selected
	}

	selectedTokens := make([]map[string]struct{}, 0, topK)

	for _, c := range sorted {
		if len(selected) >= topK {
			break
		}
		if c == nil {
			continue
		}

		tokens := wordSet(c.Text)
		if len(selected) > 0 && isNearDuplicate(c, tokens, selected, selectedTokens, threshold) {
			continue
		}

		selected = append(selected, c)
		selectedTokens = append(selectedTokens, tokens)
	}

	return selected
}

func isNearDuplicate(c *model.Candidate, tokens map[string]struct{}, selected []*model.Candidate, selectedTokens []map[string]struct{}, threshold float64) bool {
	for i, s := range selected {
		if c.Text == s.Text {
			return true
		}
		if jaccard(tokens, selectedTokens[i]) > threshold {
			return true
		}
	}
	return false
}

// Overlap is the Jaccard ratio of the lowercase whitespace separated word
// sets of a and b. It is 0 if either text has no words.
func Overlap(a, b string) float64 {
	return jaccard(wordSet(a), wordSet(b))
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	intersection := 0
	for token := range small {
		if _, ok := large[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection

	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
