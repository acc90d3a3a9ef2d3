package gatewayclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vibedocs/internal/gateway/api"
	"vibedocs/internal/pipeline"
)

const maxEventBytes = 4 << 20

// APIError is a non-2xx gateway reply.
type APIError struct {
	Status  int
	Message string
	Hint    string
}

func (e *APIError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("gateway %d: %s (%s)", e.Status, e.Message, e.Hint)
	}
	return fmt.Sprintf("gateway %d: %s", e.Status, e.Message)
}

// Client talks to the document gateway over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Streams can run for many
// minutes, so the default has no overall timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the gateway root.
func (c *Client) BaseURL() string { return c.baseURL }

// Handler receives stream events in order. Returning an error stops the
// stream and closes the connection.
type Handler func(pipeline.Event) error

// Generate opens the generation stream and feeds every event to fn.
func (c *Client) Generate(ctx context.Context, body api.GenerateBody, fn Handler) error {
	return c.stream(ctx, "/api/generate-documents-stream", body, fn)
}

// Regenerate opens the targeted regeneration stream.
func (c *Client) Regenerate(ctx context.Context, body api.RegenerateBody, fn Handler) error {
	return c.stream(ctx, "/api/regenerate-document", body, fn)
}

// Validate checks a key. A rejected key is a normal result, not an error.
func (c *Client) Validate(ctx context.Context, body api.ValidateBody) (api.ValidateResponse, error) {
	var out api.ValidateResponse
	resp, err := c.post(ctx, "/api/ai/validate", body, "application/json")
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusBadRequest, http.StatusUnauthorized:
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return out, fmt.Errorf("decode validate response: %w", err)
		}
		return out, nil
	default:
		return out, readAPIError(resp)
	}
}

// AIGenerate runs a single free-form generation.
func (c *Client) AIGenerate(ctx context.Context, body api.AIGenerateBody) (api.AIGenerateResponse, error) {
	var out api.AIGenerateResponse
	resp, err := c.post(ctx, "/api/ai/generate", body, "application/json")
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, readAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode generate response: %w", err)
	}
	return out, nil
}

// Health reports whether the gateway answers.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, accept string) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	return resp, nil
}

func (c *Client) stream(ctx context.Context, path string, body any, fn Handler) error {
	resp, err := c.post(ctx, path, body, "text/event-stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	return ReadEvents(resp.Body, fn)
}

// ErrStreamClosed reports a stream that ended without a complete event.
var ErrStreamClosed = errors.New("stream closed before complete")

// ReadEvents parses `data: <json>` frames until complete or EOF.
func ReadEvents(r io.Reader, fn Handler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventBytes)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		var ev pipeline.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
		if ev.Type == pipeline.EventComplete {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return ErrStreamClosed
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body api.ErrorBody
	if err := json.Unmarshal(raw, &body); err != nil || strings.TrimSpace(body.Error) == "" {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	return &APIError{Status: resp.StatusCode, Message: body.Error, Hint: body.Hint}
}
