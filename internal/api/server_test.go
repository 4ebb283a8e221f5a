package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/docury/internal/backend"
	"github.com/MikeSquared-Agency/docury/internal/events"
	"github.com/MikeSquared-Agency/docury/internal/store"
)

type fakeBackend struct {
	mu          sync.Mutex
	calls       []string
	question    string
	sessionID   string
	url         string
	contentType string
	uploadBody  []byte

	relay *backend.Relay
	err   error
}

func (f *fakeBackend) record(endpoint string) (*backend.Relay, error) {
	f.calls = append(f.calls, endpoint)
	if f.err != nil {
		return nil, f.err
	}
	if f.relay != nil {
		return f.relay, nil
	}
	return &backend.Relay{Status: http.StatusOK, Body: []byte(`{"response":"ok"}`)}, nil
}

func (f *fakeBackend) Chat(_ context.Context, question, sessionID string) (*backend.Relay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.question, f.sessionID = question, sessionID
	return f.record("chat")
}

func (f *fakeBackend) Upload(_ context.Context, contentType string, body io.Reader) (*backend.Relay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentType = contentType
	f.uploadBody, _ = io.ReadAll(body)
	return f.record("upload")
}

func (f *fakeBackend) IndexURL(_ context.Context, url, sessionID string) (*backend.Relay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url, f.sessionID = url, sessionID
	return f.record("url")
}

type fakePublisher struct {
	activities []events.Activity
}

func (p *fakePublisher) PublishActivity(a events.Activity) error {
	p.activities = append(p.activities, a)
	return nil
}

type fakeExchangeLog struct {
	recorded []store.Exchange
	listErr  error
}

func (l *fakeExchangeLog) RecordExchange(_ context.Context, ex store.Exchange) (uuid.UUID, error) {
	l.recorded = append(l.recorded, ex)
	return uuid.New(), nil
}

func (l *fakeExchangeLog) ListExchanges(_ context.Context, sessionID string, limit int) ([]store.Exchange, error) {
	if l.listErr != nil {
		return nil, l.listErr
	}
	var out []store.Exchange
	for _, ex := range l.recorded {
		if ex.SessionID == sessionID && len(out) < limit {
			out = append(out, ex)
		}
	}
	return out, nil
}

func newTestServer(b Backend, opts ...Option) *Server {
	return NewServer(3000, b, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func do(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func multipartBody(t *testing.T, field, filename, content string, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		mw.WriteField(k, v)
	}
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&fakeBackend{})

	w := do(srv, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(&fakeBackend{})

	w := do(srv, httptest.NewRequest("GET", "/nonexistent", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestChat_ForwardsAndRelaysVerbatim(t *testing.T) {
	fb := &fakeBackend{relay: &backend.Relay{Status: http.StatusOK, Body: []byte(`{"response":"42","extra":true}`)}}
	srv := newTestServer(fb)

	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"message":"meaning?","sessionId":"sess-1","hasContext":true}`))
	w := do(srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"response":"42","extra":true}` {
		t.Errorf("expected verbatim body, got %s", got)
	}
	if fb.question != "meaning?" || fb.sessionID != "sess-1" {
		t.Errorf("unexpected forward: question=%q session=%q", fb.question, fb.sessionID)
	}
}

func TestChat_InvalidJSON(t *testing.T) {
	fb := &fakeBackend{}
	srv := newTestServer(fb)

	w := do(srv, httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{not json`)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if len(fb.calls) != 0 {
		t.Errorf("expected backend untouched, got calls %v", fb.calls)
	}
}

func TestChat_RelaysBackendErrorStatus(t *testing.T) {
	fb := &fakeBackend{relay: &backend.Relay{Status: http.StatusInternalServerError, Body: []byte(`{"detail":"boom"}`)}}
	srv := newTestServer(fb)

	w := do(srv, httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"message":"hi","sessionId":"s"}`)))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected relayed 500, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["detail"] != "boom" {
		t.Errorf("expected backend error body, got %v", body)
	}
}

func TestChat_BackendUnavailable(t *testing.T) {
	fb := &fakeBackend{err: errors.New("backend call: connection refused")}
	srv := newTestServer(fb)

	w := do(srv, httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"message":"hi","sessionId":"s"}`)))

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != "backend unavailable" {
		t.Errorf("unexpected error body %v", body)
	}
}

func TestChat_MalformedBackendBody(t *testing.T) {
	fb := &fakeBackend{err: fmt.Errorf("/chat 200: %w", backend.ErrMalformedBody)}
	srv := newTestServer(fb)

	w := do(srv, httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"message":"hi","sessionId":"s"}`)))

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != "backend returned malformed JSON" {
		t.Errorf("unexpected error body %v", body)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	fb := &fakeBackend{}
	srv := newTestServer(fb)

	body, ct := multipartBody(t, "", "", "", map[string]string{"session_id": "s"})
	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	w := do(srv, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if got := decodeBody(t, w); got["error"] != "No file uploaded" {
		t.Errorf("expected 'No file uploaded', got %v", got)
	}
	if len(fb.calls) != 0 {
		t.Errorf("expected backend untouched, got calls %v", fb.calls)
	}
}

func TestUpload_WrongFieldName(t *testing.T) {
	fb := &fakeBackend{}
	srv := newTestServer(fb)

	body, ct := multipartBody(t, "document", "a.pdf", "%PDF", nil)
	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	w := do(srv, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if len(fb.calls) != 0 {
		t.Errorf("expected backend untouched, got calls %v", fb.calls)
	}
}

func TestUpload_NotMultipart(t *testing.T) {
	fb := &fakeBackend{}
	srv := newTestServer(fb)

	req := httptest.NewRequest("POST", "/api/upload", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(srv, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if len(fb.calls) != 0 {
		t.Errorf("expected backend untouched, got calls %v", fb.calls)
	}
}

func TestUpload_ForwardsOriginalBody(t *testing.T) {
	fb := &fakeBackend{relay: &backend.Relay{Status: http.StatusOK, Body: []byte(`{"chunks":12}`)}}
	pub := &fakePublisher{}
	srv := newTestServer(fb, WithEvents(pub))

	body, ct := multipartBody(t, "file", "report.pdf", "%PDF-1.7 content", map[string]string{"session_id": "sess-9"})
	sent := append([]byte(nil), body.Bytes()...)
	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	w := do(srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Equal(fb.uploadBody, sent) {
		t.Error("expected multipart body forwarded unmodified")
	}
	if fb.contentType != ct {
		t.Errorf("expected content type %q, got %q", ct, fb.contentType)
	}
	if len(pub.activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(pub.activities))
	}
	a := pub.activities[0]
	if a.Endpoint != "upload" || a.Label != "report.pdf" || a.SessionID != "sess-9" || a.Status != 200 {
		t.Errorf("unexpected activity %+v", a)
	}
}

func TestURL_EmptyLink(t *testing.T) {
	fb := &fakeBackend{}
	srv := newTestServer(fb)

	w := do(srv, httptest.NewRequest("POST", "/api/url", strings.NewReader(`{"url":"","sessionId":"s"}`)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if got := decodeBody(t, w); got["error"] != "No link provided" {
		t.Errorf("expected 'No link provided', got %v", got)
	}
	if len(fb.calls) != 0 {
		t.Errorf("expected backend untouched, got calls %v", fb.calls)
	}
}

func TestURL_MissingLink(t *testing.T) {
	fb := &fakeBackend{}
	srv := newTestServer(fb)

	w := do(srv, httptest.NewRequest("POST", "/api/url", strings.NewReader(`{"sessionId":"s"}`)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if len(fb.calls) != 0 {
		t.Errorf("expected backend untouched, got calls %v", fb.calls)
	}
}

func TestURL_Forwards(t *testing.T) {
	fb := &fakeBackend{relay: &backend.Relay{Status: http.StatusOK, Body: []byte(`{"status":"indexed"}`)}}
	log := &fakeExchangeLog{}
	srv := newTestServer(fb, WithExchangeLog(log, "tok"))

	w := do(srv, httptest.NewRequest("POST", "/api/url", strings.NewReader(`{"url":"https://example.com","sessionId":"sess-3"}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if fb.url != "https://example.com" || fb.sessionID != "sess-3" {
		t.Errorf("unexpected forward url=%q session=%q", fb.url, fb.sessionID)
	}
	if len(log.recorded) != 1 {
		t.Fatalf("expected 1 recorded exchange, got %d", len(log.recorded))
	}
	if ex := log.recorded[0]; ex.Endpoint != "url" || ex.Status != 200 || ex.SessionID != "sess-3" {
		t.Errorf("unexpected exchange %+v", ex)
	}
}

func TestExchanges_NotMountedWithoutLog(t *testing.T) {
	srv := newTestServer(&fakeBackend{})

	w := do(srv, httptest.NewRequest("GET", "/api/sessions/s/exchanges", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestExchanges_RequiresToken(t *testing.T) {
	srv := newTestServer(&fakeBackend{}, WithExchangeLog(&fakeExchangeLog{}, "secret"))

	w := do(srv, httptest.NewRequest("GET", "/api/sessions/s/exchanges", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/sessions/s/exchanges", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if w := do(srv, req); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", w.Code)
	}
}

func TestExchanges_EmptyTokenRefuses(t *testing.T) {
	srv := newTestServer(&fakeBackend{}, WithExchangeLog(&fakeExchangeLog{}, ""))

	req := httptest.NewRequest("GET", "/api/sessions/s/exchanges", nil)
	req.Header.Set("Authorization", "Bearer ")
	if w := do(srv, req); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 when no token is configured, got %d", w.Code)
	}
}

func TestExchanges_ListsSession(t *testing.T) {
	log := &fakeExchangeLog{recorded: []store.Exchange{
		{SessionID: "sess-a", Endpoint: "chat", Status: 200},
		{SessionID: "sess-b", Endpoint: "chat", Status: 200},
		{SessionID: "sess-a", Endpoint: "upload", Status: 200},
	}}
	srv := newTestServer(&fakeBackend{}, WithExchangeLog(log, "secret"))

	req := httptest.NewRequest("GET", "/api/sessions/sess-a/exchanges?limit=10", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := do(srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["count"] != float64(2) {
		t.Errorf("expected count 2, got %v", body["count"])
	}
	if body["session_id"] != "sess-a" {
		t.Errorf("expected session_id sess-a, got %v", body["session_id"])
	}
}

func TestExchanges_InvalidLimit(t *testing.T) {
	srv := newTestServer(&fakeBackend{}, WithExchangeLog(&fakeExchangeLog{}, "secret"))

	req := httptest.NewRequest("GET", "/api/sessions/s/exchanges?limit=abc", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if w := do(srv, req); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&fakeBackend{})
	do(srv, httptest.NewRequest("POST", "/api/url", strings.NewReader(`{"url":""}`)))

	w := do(srv, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "docury_gateway_rejected_total") {
		t.Error("expected gateway metrics in exposition")
	}
}
