// Package answer generates cited answers from retrieved legal passages.
package answer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/siherrmann/lexgraph/core/retrieval"
	"github.com/siherrmann/lexgraph/helper"
	"github.com/siherrmann/lexgraph/model"
	"github.com/tmc/langchaingo/llms"
)

// MaxSources caps the sources listed with an answer.
const MaxSources = 10

var (
	ErrRetrieverRequired = errors.New("retriever required")
	ErrModelRequired     = errors.New("language model required")
)

// Retriever returns fused candidates for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts ...retrieval.RetrieveOption) ([]*model.Candidate, error)
}

// Source is one cited document of an answer.
type Source struct {
	DocumentID     string  `json:"documentId"`
	DocumentTitle  string  `json:"documentTitle"`
	SectionTitle   string  `json:"sectionTitle,omitempty"`
	ArticleNumber  string  `json:"articleNumber,omitempty"`
	PageNumber     *int    `json:"pageNumber,omitempty"`
	RelevanceScore float64 `json:"relevanceScore"`
}

// Answer is the generated response together with what it was built from.
type Answer struct {
	Question       string             `json:"question"`
	Text           string             `json:"text"`
	Sources        []Source           `json:"sources"`
	Candidates     []*model.Candidate `json:"candidates"`
	RetrievalTime  time.Duration      `json:"retrievalTime"`
	GenerationTime time.Duration      `json:"generationTime"`
	TotalTime      time.Duration      `json:"totalTime"`
}

// Service answers questions with a retriever and a langchaingo model.
type Service struct {
	retriever    Retriever
	llm          llms.Model
	systemPrompt string
	temperature  float64
	maxTokens    int
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(prompt string) Option {
	return func(s *Service) error {
		if strings.TrimSpace(prompt) == "" {
			return errors.New("system prompt is empty")
		}
		s.systemPrompt = prompt
		return nil
	}
}

// WithGeneration sets temperature and token limit. Defaults are 0.7 and 2048.
func WithGeneration(temperature float64, maxTokens int) Option {
	return func(s *Service) error {
		if temperature < 0 || maxTokens < 1 {
			return errors.New("temperature must be non negative and max tokens positive")
		}
		s.temperature = temperature
		s.maxTokens = maxTokens
		return nil
	}
}

func NewService(retriever Retriever, llm llms.Model, opts ...Option) (*Service, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if llm == nil {
		return nil, ErrModelRequired
	}

	s := &Service{
		retriever:    retriever,
		llm:          llm,
		systemPrompt: DefaultSystemPrompt,
		temperature:  0.7,
		maxTokens:    2048,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

type askOptions struct {
	history   []Message
	retrieval []retrieval.RetrieveOption
}

// AskOption configures a single Ask call.
type AskOption func(*askOptions)

// WithHistory passes earlier turns, the last three are used.
func WithHistory(history []Message) AskOption {
	return func(o *askOptions) {
		o.history = history
	}
}

// WithRetrieveOptions forwards options to the retriever.
func WithRetrieveOptions(opts ...retrieval.RetrieveOption) AskOption {
	return func(o *askOptions) {
		o.retrieval = append(o.retrieval, opts...)
	}
}

// Ask retrieves candidates for the question and generates a cited answer.
// Retrieval errors are returned unchanged. Without candidates the model is
// not called and NoInformationAnswer is returned.
func (s *Service) Ask(ctx context.Context, question string, opts ...AskOption) (*Answer, error) {
	o := askOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	candidates, err := s.retriever.Retrieve(ctx, question, o.retrieval...)
	if err != nil {
		return nil, err
	}
	retrievalTime := time.Since(start)
	s.logger.Info("Retrieved candidates", "count", len(candidates), "duration", retrievalTime)

	answer := &Answer{
		Question:      question,
		Sources:       Sources(candidates),
		Candidates:    candidates,
		RetrievalTime: retrievalTime,
	}

	if len(candidates) == 0 {
		answer.Text = NoInformationAnswer
		answer.TotalTime = time.Since(start)
		return answer, nil
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, s.systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, BuildPrompt(question, candidates, o.history)),
	}

	generationStart := time.Now()
	response, err := s.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(s.temperature),
		llms.WithMaxTokens(s.maxTokens),
	)
	if err != nil {
		return nil, helper.NewError("generate answer", err)
	}
	if response == nil || len(response.Choices) == 0 {
		return nil, helper.NewError("generate answer", errors.New("model returned no choices"))
	}

	answer.Text = strings.TrimSpace(response.Choices[0].Content)
	answer.GenerationTime = time.Since(generationStart)
	answer.TotalTime = time.Since(start)
	s.logger.Info("Generated answer", "duration", answer.GenerationTime, "sources", len(answer.Sources))

	return answer, nil
}

// Sources lists one source per document in candidate order, at most
// MaxSources. Each source carries the citation of the document's best
// candidate.
func Sources(candidates []*model.Candidate) []Source {
	sources := []Source{}
	seen := make(map[string]bool)
	for _, candidate := range candidates {
		if candidate == nil || seen[candidate.ParentDocumentID] {
			continue
		}
		seen[candidate.ParentDocumentID] = true

		m := candidate.Metadata
		sources = append(sources, Source{
			DocumentID:     candidate.ParentDocumentID,
			DocumentTitle:  m.DocumentTitle,
			SectionTitle:   m.SectionTitle,
			ArticleNumber:  m.ArticleNumber,
			PageNumber:     m.PageNumber,
			RelevanceScore: candidate.FinalScore,
		})
		if len(sources) == MaxSources {
			break
		}
	}
	return sources
}
