package pipeline

import (
	"regexp"
	"strings"
)

// LegalReference is a citation of an article found in passage text.
type LegalReference struct {
	Text    string // as written, e.g. "Art. 5"
	Article string // normalized article number, e.g. "5"
	Pattern string
}

type referencePattern struct {
	name string
	re   *regexp.Regexp
}

// Capture group 1 is the article number.
var referencePatterns = []referencePattern{
	{"article", regexp.MustCompile(`(?i)\b(?:article|art\.)\s*(\d+[a-z]?)\b`)},
	{"paragraph", regexp.MustCompile(`§\s*(\d+[a-z]?)\b`)},
	{"section", regexp.MustCompile(`(?i)\bsection\s+(\d+(?:\.\d+)*)\b`)},
	{"dieu", regexp.MustCompile(`(?i)điều\s+(\d+)\b`)},
}

var articlePrefix = regexp.MustCompile(`(?i)^(?:article|art\.|§|section|điều)\s*`)

// ExtractLegalReferences finds article citations in text, in order of
// first appearance, one per article number.
func ExtractLegalReferences(text string) []LegalReference {
	type match struct {
		start int
		ref   LegalReference
	}

	var matches []match
	for _, p := range referencePatterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			matches = append(matches, match{
				start: loc[0],
				ref: LegalReference{
					Text:    text[loc[0]:loc[1]],
					Article: NormalizeArticle(text[loc[2]:loc[3]]),
					Pattern: p.name,
				},
			})
		}
	}

	// insertion sort by position, patterns rarely match more than a few times
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].start < matches[j-1].start; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}

	seen := make(map[string]bool, len(matches))
	references := make([]LegalReference, 0, len(matches))
	for _, m := range matches {
		if seen[m.ref.Article] {
			continue
		}
		seen[m.ref.Article] = true
		references = append(references, m.ref)
	}
	return references
}

// NormalizeArticle reduces an article label like "Art. 5", "§ 5" or
// "Article 5" to "5".
func NormalizeArticle(label string) string {
	label = strings.TrimSpace(label)
	label = articlePrefix.ReplaceAllString(label, "")
	return strings.ToLower(strings.TrimSpace(label))
}
