package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/searchbrief/models"
	"github.com/mohammad-safakhou/searchbrief/utils"
)

var (
	// ErrLimitReached is returned when the server rejected the search because
	// the session is full. The wrapped text is the server's message.
	ErrLimitReached = errors.New("session limit reached")
	// ErrStream covers non-2xx responses, terminal error lines and streams
	// that end without a terminal line.
	ErrStream   = errors.New("search stream failed")
	ErrInFlight = errors.New("query already in flight")
	ErrEmpty    = errors.New("query is empty")
)

// Result is the settled outcome of one search.
type Result struct {
	Search     models.Search
	SessionID  *int64
	NewSession bool
	// Empty is set for the soft-empty response. Message carries its text.
	Empty   bool
	Message string
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	View    *View
	// Navigate is called when the server moves the view to another session.
	Navigate func(sessionID int64)
	Logger   *zap.Logger
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{},
		View:    NewView(),
		Logger:  zap.NewNop(),
	}
}

type searchBody struct {
	Message   string `json:"message"`
	SessionID *int64 `json:"sessionId"`
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

// Search submits query against the view's session and streams the summary
// into the view, forwarding each token to onToken. The optimistic entry is
// rolled back on every failure path.
func (c *Client) Search(ctx context.Context, query string, onToken func(string)) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, ErrEmpty
	}
	if c.View == nil {
		c.View = NewView()
	}
	sessionID, err := c.View.begin(query)
	if err != nil {
		return Result{}, err
	}
	res, err := c.search(ctx, query, sessionID, onToken)
	if err != nil || res.Empty {
		c.View.rollback(query)
	}
	return res, err
}

func (c *Client) search(ctx context.Context, query string, sessionID *int64, onToken func(string)) (Result, error) {
	payload, err := json.Marshal(searchBody{Message: query, SessionID: sessionID})
	if err != nil {
		return Result{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/search", bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrStream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body models.ErrorMessage
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(b, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(b))
		}
		return Result{}, fmt.Errorf("%w: %s: %s", ErrStream, resp.Status, body.Error)
	}

	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt == "application/json" {
		var empty models.EmptyResponse
		if err := json.NewDecoder(resp.Body).Decode(&empty); err != nil {
			return Result{}, fmt.Errorf("%w: decode: %w", ErrStream, err)
		}
		return Result{Empty: true, Message: empty.Message, SessionID: sessionID}, nil
	}

	r := bufio.NewReader(resp.Body)
	for {
		line, readErr := r.ReadBytes('\n')
		// a trailing line without '\n' still counts
		if line = bytes.TrimSpace(line); len(line) > 0 {
			var msg models.StreamMessage
			if err := json.Unmarshal(line, &msg); err != nil {
				c.logger().Warn("skipping malformed stream line", zap.ByteString("line", line), zap.Error(err))
			} else {
				switch {
				case msg.Error != "":
					return Result{}, fmt.Errorf("%w: %s", ErrStream, msg.Error)
				case msg.Final:
					return c.finish(query, msg)
				case msg.Token != nil:
					c.View.appendToken(query, *msg.Token)
					if onToken != nil {
						onToken(*msg.Token)
					}
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return Result{}, fmt.Errorf("%w: stream ended without a final message", ErrStream)
			}
			return Result{}, fmt.Errorf("%w: %w", ErrStream, readErr)
		}
	}
}

func (c *Client) finish(query string, final models.StreamMessage) (Result, error) {
	if final.LimitReached {
		msg := final.Message
		if msg == "" {
			msg = ErrLimitReached.Error()
		}
		return Result{Message: msg, SessionID: final.SessionID}, fmt.Errorf("%w: %s", ErrLimitReached, msg)
	}
	entry, moved := c.View.settle(query, final, time.Now().UTC().Format(time.RFC3339))
	if moved && c.Navigate != nil {
		c.Navigate(*final.SessionID)
	}
	return Result{Search: entry, SessionID: final.SessionID, NewSession: final.NewSession}, nil
}

// Session fetches one of the caller's persisted sessions.
func (c *Client) Session(ctx context.Context, id int64) (models.Session, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/sessions/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return models.Session{}, err
	}
	var s models.Session
	if err := utils.DoJSON(c.HTTP, req, &s); err != nil {
		return models.Session{}, err
	}
	return s, nil
}

// Open loads a persisted session into the view.
func (c *Client) Open(ctx context.Context, id int64) error {
	s, err := c.Session(ctx, id)
	if err != nil {
		return err
	}
	if c.View == nil {
		c.View = NewView()
	}
	c.View.Load(s)
	return nil
}
