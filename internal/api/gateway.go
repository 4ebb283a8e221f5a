package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/MikeSquared-Agency/docury/internal/backend"
	"github.com/MikeSquared-Agency/docury/internal/events"
	"github.com/MikeSquared-Agency/docury/internal/store"
)

const (
	maxUploadBytes  = 32 << 20
	multipartMemory = 8 << 20
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message    string `json:"message"`
	SessionID  string `json:"sessionId"`
	HasContext bool   `json:"hasContext,omitempty"`
}

// URLRequest is the body of POST /api/url.
type URLRequest struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// forwarded describes one backend round trip for logging, metrics and events.
type forwarded struct {
	endpoint  string
	sessionID string
	label     string
	started   time.Time
	relay     *backend.Relay
	err       error
}

// chat handles POST /api/chat.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, "chat", http.StatusBadRequest, "invalid JSON")
		return
	}

	f := forwarded{endpoint: "chat", sessionID: req.SessionID, started: time.Now()}
	f.relay, f.err = s.backend.Chat(r.Context(), req.Message, req.SessionID)
	s.relay(w, r, f)
}

// upload handles POST /api/upload. The multipart body is buffered so the
// file field can be checked and the original bytes still forwarded as-is.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.reject(w, "upload", http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		s.reject(w, "upload", http.StatusBadRequest, "No file uploaded")
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.reject(w, "upload", http.StatusBadRequest, "No file uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		s.reject(w, "upload", http.StatusBadRequest, "No file uploaded")
		return
	}

	f := forwarded{
		endpoint:  "upload",
		sessionID: firstValue(r.MultipartForm.Value["session_id"]),
		label:     files[0].Filename,
		started:   time.Now(),
	}
	f.relay, f.err = s.backend.Upload(r.Context(), r.Header.Get("Content-Type"), bytes.NewReader(body))
	s.relay(w, r, f)
}

// indexURL handles POST /api/url.
func (s *Server) indexURL(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, "url", http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		s.reject(w, "url", http.StatusBadRequest, "No link provided")
		return
	}

	f := forwarded{endpoint: "url", sessionID: req.SessionID, label: req.URL, started: time.Now()}
	f.relay, f.err = s.backend.IndexURL(r.Context(), req.URL, req.SessionID)
	s.relay(w, r, f)
}

func firstValue(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

func (s *Server) reject(w http.ResponseWriter, endpoint string, status int, msg string) {
	gatewayRejected.WithLabelValues(endpoint).Inc()
	writeError(w, status, msg)
}

// relay writes the backend's answer verbatim, or a 502 when there is nothing
// to relay, then reports the exchange.
func (s *Server) relay(w http.ResponseWriter, r *http.Request, f forwarded) {
	elapsed := time.Since(f.started)
	gatewayDuration.WithLabelValues(f.endpoint).Observe(elapsed.Seconds())

	status := http.StatusBadGateway
	errText := ""
	if f.err != nil {
		errText = f.err.Error()
		s.logger.Warn("backend request failed", "endpoint", f.endpoint, "session_id", f.sessionID, "error", f.err)
		if errors.Is(f.err, backend.ErrMalformedBody) {
			writeError(w, status, "backend returned malformed JSON")
		} else {
			writeError(w, status, "backend unavailable")
		}
	} else {
		status = f.relay.Status
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(f.relay.Body)
		s.logger.Debug("backend response relayed", "endpoint", f.endpoint, "session_id", f.sessionID, "status", status, "body", string(f.relay.Body))
	}
	gatewayRequests.WithLabelValues(f.endpoint, strconv.Itoa(status)).Inc()

	if s.events != nil {
		if err := s.events.PublishActivity(events.Activity{
			SessionID: f.sessionID,
			Endpoint:  f.endpoint,
			Status:    status,
			Label:     f.label,
		}); err != nil {
			s.logger.Warn("failed to publish activity", "endpoint", f.endpoint, "error", err)
		}
	}

	if s.exchanges != nil {
		if _, err := s.exchanges.RecordExchange(context.WithoutCancel(r.Context()), store.Exchange{
			SessionID:  f.sessionID,
			Endpoint:   f.endpoint,
			Status:     status,
			DurationMS: elapsed.Milliseconds(),
			Error:      errText,
		}); err != nil {
			s.logger.Warn("failed to record exchange", "endpoint", f.endpoint, "error", err)
		}
	}
}
