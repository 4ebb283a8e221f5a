// Package client talks to the Docury gateway's /api surface on behalf of a
// chat.Controller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/MikeSquared-Agency/docury/internal/chat"
)

type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

type urlRequest struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

func (c *Client) Chat(ctx context.Context, req chat.ChatRequest) (chat.Reply, error) {
	return c.postJSON(ctx, "/api/chat", req)
}

func (c *Client) IndexURL(ctx context.Context, sessionID, url string) (chat.Reply, error) {
	return c.postJSON(ctx, "/api/url", urlRequest{URL: url, SessionID: sessionID})
}

// Upload streams content as the multipart "file" field. The session id rides
// along as a "session_id" form value.
func (c *Client) Upload(ctx context.Context, sessionID, filename string, content io.Reader) (chat.Reply, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeForm(mw, sessionID, filename, content))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", pr)
	if err != nil {
		pr.Close()
		return chat.Reply{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func writeForm(mw *multipart.Writer, sessionID, filename string, content io.Reader) error {
	if err := mw.WriteField("session_id", sessionID); err != nil {
		return fmt.Errorf("write session field: %w", err)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create file field: %w", err)
	}
	if _, err := io.Copy(fw, content); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}
	return mw.Close()
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (chat.Reply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return chat.Reply{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return chat.Reply{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (chat.Reply, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return chat.Reply{}, fmt.Errorf("gateway call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return chat.Reply{}, fmt.Errorf("read response: %w", err)
	}

	var body map[string]any
	if err := json.Unmarshal(respBody, &body); err != nil {
		return chat.Reply{}, fmt.Errorf("decode %s response (status %d): %w", req.URL.Path, resp.StatusCode, err)
	}
	return chat.Reply{Status: resp.StatusCode, Body: body}, nil
}
