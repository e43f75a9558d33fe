package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/searchbrief/internal/runtime"
	"github.com/mohammad-safakhou/searchbrief/internal/store"
	"github.com/mohammad-safakhou/searchbrief/session"
)

type SessionsHandler struct {
	Store  session.Store
	Logger *zap.Logger
}

func (h *SessionsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.DELETE("", h.delete)
	g.DELETE("/delete-all", h.deleteAll)
}

type deleteSessionRequest struct {
	ID json.Number `json:"id"`
}

func (h *SessionsHandler) list(c echo.Context) error {
	ctx := c.Request().Context()
	sessions, err := h.Store.ListSessions(ctx, runtime.UserID(c))
	if err != nil {
		h.Logger.Error("list sessions", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch sessions")
	}
	out := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, newSessionView(s))
	}
	return c.JSON(http.StatusOK, sessionsResponse{Sessions: out})
}

func (h *SessionsHandler) get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	s, err := h.Store.GetSession(c.Request().Context(), id, runtime.UserID(c))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Session not found")
	}
	if err != nil {
		h.Logger.Error("get session", zap.Int64("session_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch session")
	}
	return c.JSON(http.StatusOK, newSessionView(s))
}

// delete removes one session. The id comes from the JSON body or the id
// query parameter.
func (h *SessionsHandler) delete(c echo.Context) error {
	raw := strings.TrimSpace(c.QueryParam("id"))
	if raw == "" {
		var body deleteSessionRequest
		if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		raw = body.ID.String()
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Session id is required")
	}
	err = h.Store.DeleteSession(c.Request().Context(), id, runtime.UserID(c))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Session not found")
	}
	if err != nil {
		h.Logger.Error("delete session", zap.Int64("session_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete session")
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Session deleted"})
}

func (h *SessionsHandler) deleteAll(c echo.Context) error {
	n, err := h.Store.DeleteAllSessions(c.Request().Context(), runtime.UserID(c))
	if err != nil {
		h.Logger.Error("delete all sessions", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete sessions")
	}
	if n == 0 {
		return c.JSON(http.StatusOK, messageResponse{Message: "No sessions to delete"})
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "All sessions deleted", Deleted: n})
}
