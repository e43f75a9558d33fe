package search

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

func plainTextPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// PlainText strips every tag from a provider title or snippet and folds
// entities back so the LLM sees readable text. Whitespace runs collapse to a
// single space.
func PlainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = html.UnescapeString(plainTextPolicy().Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}
