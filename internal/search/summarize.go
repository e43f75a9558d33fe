package search

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mohammad-safakhou/searchbrief/models"
	"github.com/mohammad-safakhou/searchbrief/provider"
	openai_provider "github.com/mohammad-safakhou/searchbrief/provider/openai"
)

const (
	ongoingSystemPrompt = "Summarize the following search results for the user, highlighting the ongoing event if applicable."
	defaultSystemPrompt = "Summarize the following search results for the user. If recent news is available, highlight it. " +
		"Otherwise, provide a general summary of the most relevant information. Start with an introductory sentence or two, " +
		"then present two to three bullet points covering key details, and conclude with a final remark."
)

// StreamError reports an LLM failure after the response stream was opened.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string { return "summary stream: " + e.Err.Error() }

func (e *StreamError) Unwrap() error { return e.Err }

// BuildContext renders results as the "- title: snippet" block fed to the LLM.
// Provider markup is stripped first.
func BuildContext(results []models.SearchResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("- %s: %s", PlainText(r.Title), PlainText(r.Snippet)))
	}
	return strings.Join(lines, "\n")
}

// SystemPrompt picks the ongoing-event instruction when any result is
// currently happening.
func SystemPrompt(results []models.SearchResult) string {
	for _, r := range results {
		if strings.Contains(r.Snippet, OngoingEventMarker) {
			return ongoingSystemPrompt
		}
	}
	return defaultSystemPrompt
}

type Summarizer struct {
	llm     provider.Provider
	model   string
	metrics *Metrics
}

func NewSummarizer(llm provider.Provider, model string, metrics *Metrics) *Summarizer {
	return &Summarizer{llm: llm, model: model, metrics: orNop(metrics)}
}

// Stream forwards each summary token to emit as it arrives and returns the
// full text. Tokens already emitted stay emitted when a later error occurs.
func (s *Summarizer) Stream(ctx context.Context, results []models.SearchResult, emit func(token string) error) (string, error) {
	ctx, span := tracer.Start(ctx, "Summarizer.Stream")
	defer span.End()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tokens, errs := s.llm.Stream(ctx, openai_provider.Request{
		System: SystemPrompt(results),
		User:   BuildContext(results),
		Model:  s.model,
	})

	var summary strings.Builder
	count := 0
	for tok := range tokens {
		summary.WriteString(tok)
		count++
		if err := emit(tok); err != nil {
			cancel()
			for range tokens {
			}
			span.RecordError(err)
			return summary.String(), &StreamError{Err: err}
		}
		s.metrics.StreamedTokens.Inc()
	}
	span.SetAttributes(attribute.Int("tokens", count))
	if err := <-errs; err != nil {
		span.RecordError(err)
		return summary.String(), &StreamError{Err: err}
	}
	return summary.String(), nil
}
