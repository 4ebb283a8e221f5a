package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrMalformedBody is returned when the backend answers with something that is
// not JSON.
var ErrMalformedBody = errors.New("backend returned malformed JSON")

// Client forwards requests to the RAG backend. It never retries and applies no
// timeout of its own; callers bound requests through the context.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

// Relay is a backend answer passed through to the gateway's caller untouched.
type Relay struct {
	Status int
	Body   json.RawMessage
}

type chatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

type urlRequest struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// Chat posts {question, session_id} to {API}/chat.
func (c *Client) Chat(ctx context.Context, question, sessionID string) (*Relay, error) {
	return c.postJSON(ctx, "/chat", chatRequest{Question: question, SessionID: sessionID})
}

// IndexURL posts {url, session_id} to {API}/url.
func (c *Client) IndexURL(ctx context.Context, url, sessionID string) (*Relay, error) {
	return c.postJSON(ctx, "/url", urlRequest{URL: url, SessionID: sessionID})
}

// Upload forwards a multipart body to {API}/upload as-is. contentType must carry
// the original boundary.
func (c *Client) Upload(ctx context.Context, contentType string, body io.Reader) (*Relay, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*Relay, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Relay, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if !json.Valid(respBody) {
		return nil, fmt.Errorf("%s %d: %w", req.URL.Path, resp.StatusCode, ErrMalformedBody)
	}

	return &Relay{Status: resp.StatusCode, Body: respBody}, nil
}
