package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/docury/internal/session"
)

// ChatRequest is what a turn sends through the gateway.
type ChatRequest struct {
	Message    string `json:"message"`
	SessionID  string `json:"sessionId"`
	HasContext bool   `json:"hasContext"`
}

// Reply is a settled gateway answer: the HTTP status and the decoded JSON body.
type Reply struct {
	Status int
	Body   map[string]any
}

func (r Reply) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Gateway is the proxy the controller talks to. An error means the request
// never produced a decodable answer.
type Gateway interface {
	Chat(ctx context.Context, req ChatRequest) (Reply, error)
	Upload(ctx context.Context, sessionID, filename string, content io.Reader) (Reply, error)
	IndexURL(ctx context.Context, sessionID, url string) (Reply, error)
}

// Controller owns one session's State and is safe for concurrent use. Start*
// methods apply the tentative transition synchronously and hand back the
// request as a Completion; the Send/Begin methods run both phases. Observers run
// with the controller locked and must not call back into it.
type Controller struct {
	gateway Gateway
	session session.ID
	layout  Layout
	logger  *slog.Logger
	newID   func() string

	mu        sync.Mutex
	state     State
	observers []func(State)
}

func NewController(gw Gateway, sess session.ID, layout Layout, logger *slog.Logger) *Controller {
	return &Controller{
		gateway: gw,
		session: sess,
		layout:  layout,
		logger:  logger,
		newID:   uuid.NewString,
		state:   NewState(layout),
	}
}

func (c *Controller) SessionID() session.ID { return c.session }

func (c *Controller) Layout() Layout { return c.layout }

// Observe registers fn to receive a copy of the state after every transition.
func (c *Controller) Observe(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Controller) Affordances() Affordances {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layout.Affordances(c.state)
}

// Completion is the second phase of an accepted action: it issues the request
// and applies the confirming or compensating transition. It always runs to
// completion, whatever the front end has done in the meantime.
type Completion func(ctx context.Context)

// StartTurn appends the user's message and a loading placeholder, returning
// the completion that fetches the reply. It returns false without touching the
// timeline when text is blank or any request is in flight.
func (c *Controller) StartTurn(text string) (Completion, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	id := c.newID()
	var hasContext bool
	started := c.begin(func(s State) bool {
		hasContext = s.Context.Kind != SourceNone
		return !s.Busy()
	}, TurnStarted{Text: text, PlaceholderID: id})
	if !started {
		return nil, false
	}

	return func(ctx context.Context) {
		reply, err := c.gateway.Chat(ctx, ChatRequest{
			Message:    text,
			SessionID:  c.session.String(),
			HasContext: hasContext,
		})
		c.dispatch(c.settleTurn(id, reply, err))
	}, true
}

// StartUpload tentatively records name as the context. It returns false when
// the layout's upload guard rejects it.
func (c *Controller) StartUpload(name string, content io.Reader) (Completion, bool) {
	if !c.begin(c.layout.canBeginUpload, UploadStarted{Name: name}) {
		return nil, false
	}

	return func(ctx context.Context) {
		reply, err := c.gateway.Upload(ctx, c.session.String(), name, content)
		if err != nil || !reply.OK() {
			c.logger.Warn("upload failed", "file", name, "status", reply.Status, "error", err)
			c.dispatch(UploadFailed{Name: name})
			return
		}
		c.logger.Info("upload processed", "file", name, "response", reply.Body)
		c.dispatch(UploadConfirmed{Name: name})
	}, true
}

// StartIndex tentatively records url as the context. Blank URLs and the
// single layout are rejected.
func (c *Controller) StartIndex(url string) (Completion, bool) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, false
	}
	if !c.begin(c.layout.canBeginIndex, IndexStarted{URL: url}) {
		return nil, false
	}

	return func(ctx context.Context) {
		reply, err := c.gateway.IndexURL(ctx, c.session.String(), url)
		if err != nil || !reply.OK() {
			c.logger.Warn("indexing failed", "url", url, "status", reply.Status, "error", err)
			c.dispatch(IndexFailed{URL: url})
			return
		}
		c.logger.Info("url indexed", "url", url, "response", reply.Body)
		c.dispatch(IndexConfirmed{URL: url})
	}, true
}

// SendMessage runs a whole chat turn and blocks until it settles.
func (c *Controller) SendMessage(ctx context.Context, text string) bool {
	done, ok := c.StartTurn(text)
	return run(ctx, done, ok)
}

// BeginUpload runs a whole upload and blocks until it settles.
func (c *Controller) BeginUpload(ctx context.Context, name string, content io.Reader) bool {
	done, ok := c.StartUpload(name, content)
	return run(ctx, done, ok)
}

// BeginIndex runs a whole indexing request and blocks until it settles.
func (c *Controller) BeginIndex(ctx context.Context, url string) bool {
	done, ok := c.StartIndex(url)
	return run(ctx, done, ok)
}

func run(ctx context.Context, done Completion, ok bool) bool {
	if ok {
		done(ctx)
	}
	return ok
}

// RemoveContext drops any file or URL context. It always succeeds.
func (c *Controller) RemoveContext() {
	c.dispatch(ContextRemoved{})
}

func (c *Controller) settleTurn(id string, reply Reply, err error) Event {
	if err != nil {
		c.logger.Warn("chat request failed", "placeholder", id, "error", err)
		return TurnFailed{PlaceholderID: id}
	}
	if !reply.OK() {
		c.logger.Warn("chat request rejected", "placeholder", id, "status", reply.Status, "body", reply.Body)
		return TurnFailed{PlaceholderID: id}
	}
	return TurnAnswered{PlaceholderID: id, Answer: answerText(reply.Body)}
}

func answerText(body map[string]any) string {
	switch v := body["response"].(type) {
	case nil:
		return NoResponseText
	case string:
		if v == "" {
			return NoResponseText
		}
		return v
	default:
		return fmt.Sprint(v)
	}
}

// begin applies ev only if guard accepts the current state, atomically.
func (c *Controller) begin(guard func(State) bool, ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !guard(c.state) {
		return false
	}
	c.applyLocked(ev)
	return true
}

func (c *Controller) dispatch(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyLocked(ev)
}

func (c *Controller) applyLocked(ev Event) {
	c.state = Reduce(c.state, ev)
	for _, fn := range c.observers {
		fn(c.state.clone())
	}
}
