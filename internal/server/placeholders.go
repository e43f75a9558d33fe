package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/searchbrief/internal/search"
	"github.com/mohammad-safakhou/searchbrief/provider"
	openai_provider "github.com/mohammad-safakhou/searchbrief/provider/openai"
)

const (
	placeholdersCacheKey = "placeholders"
	fallbackPlaceholder  = "Search something interesting..."

	placeholdersSystemPrompt = "You are an assistant generating realistic, concise search placeholder suggestions that mimic how people query a search engine. " +
		"Focus on practical, user-friendly phrases and questions. " +
		"Include some inspired by current trending topics such as AI innovations, space exploration, sustainability, tech releases and entertainment. " +
		"Capitalize the first word of about half the suggestions for variety, leaving the rest lowercase. " +
		"Keep it varied and engaging, but avoid overly quirky or unrealistic ideas. " +
		"Return a plain list separated by newlines, no numbering or extra text."
	placeholdersUserPrompt = "Generate 20 unique search placeholder suggestions."
)

// PlaceholdersHandler serves LLM-written search box placeholders, cached
// in-process until the TTL runs out.
type PlaceholdersHandler struct {
	LLM    provider.Provider
	Model  string
	Cache  *gocache.Cache
	Logger *zap.Logger
}

func (h *PlaceholdersHandler) Register(e *echo.Echo) {
	e.GET("/placeholders", h.get)
}

func (h *PlaceholdersHandler) get(c echo.Context) error {
	if h.Cache != nil {
		if v, ok := h.Cache.Get(placeholdersCacheKey); ok {
			return c.JSON(http.StatusOK, placeholdersResponse{Placeholders: v.([]string)})
		}
	}
	fallback := placeholdersResponse{Placeholders: []string{fallbackPlaceholder}}
	if h.LLM == nil {
		return c.JSON(http.StatusInternalServerError, fallback)
	}
	raw, err := h.LLM.Complete(c.Request().Context(), openai_provider.Request{
		System:      placeholdersSystemPrompt,
		User:        placeholdersUserPrompt,
		Model:       h.Model,
		Temperature: 0.8,
		MaxTokens:   300,
	})
	if err != nil {
		h.Logger.Error("generate placeholders", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, fallback)
	}
	list := search.ParseSuggestions(raw)
	if len(list) == 0 {
		return c.JSON(http.StatusInternalServerError, fallback)
	}
	if h.Cache != nil {
		h.Cache.SetDefault(placeholdersCacheKey, list)
	}
	return c.JSON(http.StatusOK, placeholdersResponse{Placeholders: list})
}
