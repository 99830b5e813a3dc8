package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finqa/backend/internal/index"
)

var (
	// ErrRetrievalFailed marks a failed index search. Fatal to the request:
	// no answer is synthesized without its context.
	ErrRetrievalFailed = errors.New("retrieval failed")

	// ErrGenerationFailed marks a failed language-model call. Fatal: no
	// fallback answer is fabricated.
	ErrGenerationFailed = errors.New("generation failed")
)

// NoContextMarker replaces the context block when retrieval finds nothing for
// the user, so the model answers from a known-empty context instead of the
// request failing.
const NoContextMarker = "No relevant documents were found for this question."

const promptTemplate = `You are a helpful financial assistant. Use only the following context to answer the question. If the context does not contain the answer, say so.

Context:
%s

Question:
%s

Answer:`

// Message is one prior conversational turn, passed through to the model
// unvalidated.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnswerEnvelope is the result of one question-answering cycle. Sources are in
// relevance rank order (ascending distance).
type AnswerEnvelope struct {
	Answer         string                  `json:"answer"`
	Sources        []index.RetrievalResult `json:"sources"`
	ProcessingTime time.Duration           `json:"processing_time"`
}

// Searcher is the slice of the vector index the orchestrator needs.
type Searcher interface {
	Search(ctx context.Context, query, userID string, k int) ([]index.RetrievalResult, error)
}

// Generator is the language-model gateway.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []Message) (string, error)
}

type Service struct {
	searcher  Searcher
	generator Generator
	topK      int
	logger    *AnswerLogger
}

func NewService(searcher Searcher, generator Generator, topK int, logger *AnswerLogger) *Service {
	return &Service{searcher: searcher, generator: generator, topK: topK, logger: logger}
}

// Answer runs one retrieval-augmented generation cycle for the user. No step
// is retried internally; retry policy belongs to the caller.
func (s *Service) Answer(ctx context.Context, userID, question string, history []Message) (*AnswerEnvelope, error) {
	start := time.Now()

	// 1. Retrieve
	sources, err := s.searcher.Search(ctx, question, userID, s.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}

	// 2. Assemble context
	contextBlock := BuildContext(sources)

	// 3. Render prompt
	prompt := fmt.Sprintf(promptTemplate, contextBlock, question)

	// 4. Generate
	answer, err := s.generator.Generate(ctx, prompt, history)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	envelope := &AnswerEnvelope{
		Answer:         answer,
		Sources:        sources,
		ProcessingTime: time.Since(start),
	}

	if s.logger != nil {
		s.logger.Log(AnswerLogEntry{
			Question:   question,
			NumSources: len(sources),
			Duration:   envelope.ProcessingTime,
		})
	}

	return envelope, nil
}

// BuildContext concatenates retrieved chunks in rank order, each annotated
// with its source filename and page so the model can attribute statements.
func BuildContext(sources []index.RetrievalResult) string {
	if len(sources) == 0 {
		return NoContextMarker
	}

	parts := make([]string, len(sources))
	for i, src := range sources {
		parts[i] = fmt.Sprintf("[Source: %s, Page %d] %s",
			src.Chunk.Metadata.Filename, src.Chunk.Metadata.Page, src.Chunk.Content)
	}
	return strings.Join(parts, "\n\n")
}
