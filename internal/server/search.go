package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/searchbrief/internal/runtime"
	"github.com/mohammad-safakhou/searchbrief/internal/search"
	"github.com/mohammad-safakhou/searchbrief/models"
	"github.com/mohammad-safakhou/searchbrief/session"
)

var searchTracer = otel.Tracer("searchbrief/internal/server/search")

const (
	ndjsonContentType = "text/plain; charset=utf-8"
	summaryFailedMsg  = "Failed to generate summary"
	saveFailedMsg     = "Failed to save search"
)

type SearchHandler struct {
	Service  *search.Service
	Sessions *session.Manager
	Metrics  *search.Metrics
	Logger   *zap.Logger
}

type searchRequest struct {
	Message   string          `json:"message" validate:"required"`
	SessionID json.RawMessage `json:"sessionId"`
}

func (h *SearchHandler) Register(e *echo.Echo, secret []byte) {
	e.POST("/search", h.search, runtime.EchoOptionalAuthMiddleware(secret))
}

// parseSessionID accepts a JSON number or numeric string. Anything else
// means no session was supplied.
func parseSessionID(raw json.RawMessage) *int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

var nopMetrics = search.NewMetrics(nil)

func (h *SearchHandler) metrics() *search.Metrics {
	if h.Metrics == nil {
		return nopMetrics
	}
	return h.Metrics
}

// search streams the summary as NDJSON token lines followed by exactly one
// terminal line: the final message or an error.
func (h *SearchHandler) search(c echo.Context) error {
	req := c.Request()
	ctx, span := searchTracer.Start(req.Context(), "SearchHandler.search")
	defer span.End()
	c.SetRequest(req.WithContext(ctx))

	var body searchRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	body.Message = strings.TrimSpace(body.Message)
	if err := c.Validate(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	userID := runtime.UserID(c)
	sessionID := parseSessionID(body.SessionID)
	span.SetAttributes(attribute.Bool("authenticated", userID != ""), attribute.Bool("session_supplied", sessionID != nil))

	results, err := h.Service.Prepare(ctx, body.Message)
	if errors.Is(err, search.ErrNoResults) {
		h.metrics().Searches.WithLabelValues("empty").Inc()
		return c.JSON(http.StatusOK, models.EmptyResponse{
			Message:       models.NoResultsMessage,
			SearchResults: []models.SearchResult{},
			Suggestions:   []string{},
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.metrics().Searches.WithLabelValues("error").Inc()
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}

	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}
	resp.Header().Set(echo.HeaderContentType, ndjsonContentType)
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("X-Content-Type-Options", "nosniff")
	resp.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(resp)
	enc.SetEscapeHTML(false)
	write := func(v interface{}) error {
		if err := enc.Encode(v); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	fail := func(msg string, err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.metrics().Searches.WithLabelValues("error").Inc()
		if ctx.Err() != nil {
			h.Logger.Info("client went away", zap.String("query", body.Message), zap.Error(err))
			return nil
		}
		h.Logger.Error(msg, zap.String("query", body.Message), zap.Error(err))
		_ = write(models.ErrorMessage{Error: msg})
		return nil
	}

	summary, err := h.Service.Summarizer.Stream(ctx, results, func(tok string) error {
		return write(models.TokenMessage{Token: tok})
	})
	if err != nil {
		return fail(summaryFailedMsg, err)
	}

	resolved, suggestions := h.Service.Enrich(ctx, body.Message, results)
	final := models.FinalMessage{Final: true, SearchResults: resolved, Suggestions: suggestions}

	if userID != "" && h.Sessions != nil {
		out, err := h.Sessions.Record(ctx, userID, sessionID, models.NewSearch(body.Message, summary, resolved, suggestions))
		if err != nil {
			return fail(saveFailedMsg, err)
		}
		if out.LimitReached {
			final.LimitReached = true
			final.Message = session.LimitMessage(h.Sessions.MaxSearches())
			final.SessionID = sessionID
		} else {
			id := out.Session.ID
			final.SessionID = &id
			final.NewSession = out.IsNewSession
		}
	}

	if err := write(final); err != nil {
		return fail(summaryFailedMsg, err)
	}
	h.metrics().Searches.WithLabelValues("ok").Inc()
	return nil
}
