package answer

import (
	"fmt"
	"strings"

	"github.com/siherrmann/lexgraph/model"
)

// DefaultSystemPrompt instructs the model to answer from the numbered
// sources only and to cite them.
const DefaultSystemPrompt = `You are a legal research assistant. Answer the question using only the provided legal sources.

Rules:
1. Use only information contained in the sources.
2. If the sources do not contain the answer, say that you could not find it in the provided documents.
3. Cite document, article and page exactly, in the form [Source N: Document, Article X].
4. When several provisions apply, list and explain each of them.
5. Answer clearly and concisely.`

// NoInformationAnswer is returned without calling the model when retrieval
// finds nothing.
const NoInformationAnswer = "I could not find any relevant information in the indexed legal documents."

// Message is one earlier turn of a conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

const historyTurns = 3

// Citation renders the citation label of a candidate: document title,
// section, article and page, whichever are known. Falls back to the
// hierarchy path and then to "Passage n".
func Citation(candidate *model.Candidate, n int) string {
	var parts []string
	m := candidate.Metadata
	if m.DocumentTitle != "" {
		parts = append(parts, m.DocumentTitle)
	}
	if m.SectionTitle != "" {
		parts = append(parts, m.SectionTitle)
	}
	if m.ArticleNumber != "" {
		parts = append(parts, "Article "+m.ArticleNumber)
	}
	if m.PageNumber != nil {
		parts = append(parts, fmt.Sprintf("Page %d", *m.PageNumber))
	}
	if len(parts) == 0 && candidate.HierarchyPath != "" {
		parts = append(parts, candidate.HierarchyPath)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Passage %d", n)
	}
	return strings.Join(parts, ", ")
}

// BuildContext numbers the candidates from 1 in the given order and
// renders each as a citation header followed by its text.
func BuildContext(candidates []*model.Candidate) string {
	var b strings.Builder
	for i, candidate := range candidates {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[Source %d: %s]\n%s\n", i+1, Citation(candidate, i+1), candidate.Text)
	}
	return b.String()
}

// BuildPrompt assembles the human message from context, the last turns of
// the history and the question.
func BuildPrompt(question string, candidates []*model.Candidate, history []Message) string {
	var b strings.Builder
	b.WriteString("RELEVANT LEGAL SOURCES:\n\n")
	b.WriteString(BuildContext(candidates))

	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	var turns []string
	for _, msg := range history {
		switch msg.Role {
		case "user":
			turns = append(turns, "User: "+msg.Content)
		case "assistant":
			turns = append(turns, "Assistant: "+msg.Content)
		}
	}
	if len(turns) > 0 {
		b.WriteString("\nCONVERSATION HISTORY:\n")
		b.WriteString(strings.Join(turns, "\n"))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nQUESTION: %s\n\nANSWER:", question)
	return b.String()
}
