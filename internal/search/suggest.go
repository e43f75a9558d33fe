package search

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/searchbrief/models"
	"github.com/mohammad-safakhou/searchbrief/provider"
	openai_provider "github.com/mohammad-safakhou/searchbrief/provider/openai"
)

const suggestSystemPrompt = "Generate follow-up search suggestions based on the user's query and the provided search results. " +
	"Suggestions must be relevant to the topics found in the search results and should focus on recent, widely discussed events. " +
	"Do NOT include any specific years (e.g., 2023, 2024) in the suggestions. " +
	"If a topic is time-sensitive, phrase it in a general way without mentioning years."

var listMarker = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s*`)

type Suggester struct {
	llm    provider.Provider
	model  string
	logger *zap.Logger
}

func NewSuggester(llm provider.Provider, model string, logger *zap.Logger) *Suggester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suggester{llm: llm, model: model, logger: logger}
}

// Suggest asks for follow-up queries. Any failure degrades to an empty list.
func (s *Suggester) Suggest(ctx context.Context, query string, results []models.SearchResult) []string {
	user := fmt.Sprintf("User's query: %q. Based on these search results:\n\n%s\n\n"+
		"Please suggest follow-up search queries that are directly relevant to these results. "+
		"Do NOT include specific years in your suggestions.", query, BuildContext(results))

	raw, err := s.llm.Complete(ctx, openai_provider.Request{
		System: suggestSystemPrompt,
		User:   user,
		Model:  s.model,
	})
	if err != nil {
		s.logger.Warn("suggestions failed", zap.Error(err))
		return []string{}
	}
	return ParseSuggestions(raw)
}

// ParseSuggestions splits an LLM reply into clean suggestion lines.
func ParseSuggestions(raw string) []string {
	out := []string{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		line = trimQuotes(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func trimQuotes(s string) string {
	for _, pair := range [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}} {
		if len(s) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			return strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
		}
	}
	return s
}
