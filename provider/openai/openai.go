package openai_provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/mohammad-safakhou/searchbrief/config"
)

// Request is one system+user exchange. Zero values fall back to the client's
// configured model, temperature and token budget.
type Request struct {
	System      string
	User        string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Client wraps an OpenAI-compatible chat completion endpoint.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(cfg config.LLMConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:         openai.NewClientWithConfig(oc),
		model:       cfg.CompletionModel,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (c *Client) request(req Request, stream bool) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}
	temp := req.Temperature
	if temp == 0 {
		temp = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temp,
		MaxTokens:   maxTokens,
		Stream:      stream,
	}
}

// Complete runs a single non-streamed completion and returns the first choice.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.request(req, false))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream opens a streamed completion. Empty deltas are dropped; whitespace
// and newline deltas are forwarded as-is.
// The producer blocks on the unbuffered token channel until the caller reads,
// so a slow reader slows the upstream read rather than piling up tokens.
func (c *Client) Stream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	tokens := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(tokens)

		stream, err := c.api.CreateChatCompletionStream(ctx, c.request(req, true))
		if err != nil {
			errs <- fmt.Errorf("open stream: %w", err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errs <- fmt.Errorf("read stream: %w", err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			token := resp.Choices[0].Delta.Content
			if token == "" {
				continue
			}
			select {
			case tokens <- token:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return tokens, errs
}
