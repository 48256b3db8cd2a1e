// Package answering talks to the question-answering backend.
//
// The backend answers a query given the prior conversation and optionally
// returns the sources it used:
//
//	POST {base}/chat  {"query": "...", "chat_history": [{"role": "...", "content": "..."}]}
//	200              {"response": "...", "sources": ["..."]}
//
// Any non-2xx status or a body without a response field is an error.
package answering

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kbchat/pkg/conversation"
	"github.com/go-go-golems/kbchat/pkg/helpers"
)

var (
	ErrMalformedResponse = errors.New("malformed answering service response")
	ErrUnexpectedStatus  = errors.New("unexpected answering service status")
)

const CorrelationIDHeader = "X-Correlation-ID"

// Maximum number of body bytes quoted in status errors.
const errorBodyLimit = 512

type Request struct {
	Query       string                      `json:"query"`
	ChatHistory []conversation.HistoryEntry `json:"chat_history"`
}

type Response struct {
	Response string   `json:"response"`
	Sources  []string `json:"sources,omitempty"`
}

// Service answers a query. Implementations must be safe for concurrent use.
type Service interface {
	Answer(ctx context.Context, req Request) (*Response, error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ Service = (*Client)(nil)

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds the whole request, connection and body included.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

func NewClient(baseURL string, options ...ClientOption) *Client {
	ret := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (c *Client) Answer(ctx context.Context, req Request) (*Response, error) {
	if req.ChatHistory == nil {
		req.ChatHistory = []conversation.HistoryEntry{}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if cid := helpers.CorrelationIDFromContext(ctx); cid != "" {
		httpReq.Header.Set(CorrelationIDHeader, cid)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	log.Debug().
		Str("correlation_id", helpers.CorrelationIDFromContext(ctx)).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Int("history_len", len(req.ChatHistory)).
		Msg("answering service responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, errors.Wrapf(ErrUnexpectedStatus, "status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	return decodeResponse(resp.Body)
}

func decodeResponse(r io.Reader) (*Response, error) {
	var raw struct {
		Response *string  `json:"response"`
		Sources  []string `json:"sources"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "invalid json: %v", err)
	}
	if raw.Response == nil {
		return nil, errors.Wrap(ErrMalformedResponse, "missing response field")
	}

	sources := raw.Sources
	if sources == nil {
		sources = []string{}
	}
	return &Response{Response: *raw.Response, Sources: sources}, nil
}

// ServiceFunc adapts a function to the Service interface.
type ServiceFunc func(ctx context.Context, req Request) (*Response, error)

func (f ServiceFunc) Answer(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
