// Package terminal is the interactive front end for a chat.Controller. It
// reads commands and questions line by line and prints the timeline as it
// grows.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/MikeSquared-Agency/docury/internal/chat"
)

var (
	userColor    = color.New(color.FgCyan, color.Bold)
	aiColor      = color.New(color.FgMagenta)
	loadingColor = color.New(color.FgHiBlack, color.Italic)
	systemColor  = color.New(color.FgGreen, color.Italic)
	errorColor   = color.New(color.FgRed)
	hintColor    = color.New(color.FgYellow)
)

type Terminal struct {
	ctrl *chat.Controller
	out  io.Writer
	open func(path string) (io.ReadCloser, error)

	mu       sync.Mutex
	rendered int
	waiting  map[string]bool

	inflight sync.WaitGroup
}

// New attaches a terminal to ctrl. Output is written to out as the timeline
// changes.
func New(ctrl *chat.Controller, out io.Writer) *Terminal {
	t := &Terminal{
		ctrl:    ctrl,
		out:     out,
		open:    func(path string) (io.ReadCloser, error) { return os.Open(path) },
		waiting: make(map[string]bool),
	}
	ctrl.Observe(t.render)
	return t
}

// Run processes lines from in until EOF or /quit, then waits for every request
// still in flight so their outcomes are printed.
func (t *Terminal) Run(ctx context.Context, in io.Reader) error {
	t.render(t.ctrl.Snapshot())
	t.help()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if !t.handle(ctx, scanner.Text()) {
			break
		}
	}

	t.inflight.Wait()
	return scanner.Err()
}

func (t *Terminal) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "":
		return true
	case "/quit", "/exit":
		return false
	case "/help":
		t.help()
	case "/status":
		t.status()
	case "/upload":
		t.upload(ctx, arg)
	case "/url":
		t.index(ctx, arg)
	case "/remove":
		t.remove()
	default:
		if strings.HasPrefix(cmd, "/") {
			t.hint("unknown command %s (try /help)", cmd)
			return true
		}
		t.send(ctx, line)
	}
	return true
}

func (t *Terminal) send(ctx context.Context, text string) {
	s := t.ctrl.Snapshot()
	if !t.ctrl.Affordances().Send {
		t.hint("%s", busyHint(s))
		return
	}
	if done, ok := t.ctrl.StartTurn(text); ok {
		t.spawn(ctx, done)
	}
}

func (t *Terminal) upload(ctx context.Context, path string) {
	if path == "" {
		t.hint("usage: /upload <file>")
		return
	}
	if !t.ctrl.Affordances().Upload {
		t.hint("%s", t.unavailable())
		return
	}

	f, err := t.open(path)
	if err != nil {
		t.hint("cannot open %s: %v", path, err)
		return
	}

	done, ok := t.ctrl.StartUpload(filepath.Base(path), f)
	if !ok {
		f.Close()
		return
	}
	t.spawn(ctx, func(ctx context.Context) {
		defer f.Close()
		done(ctx)
	})
}

func (t *Terminal) index(ctx context.Context, url string) {
	if t.ctrl.Layout() != chat.LayoutDual {
		t.hint("URL indexing is only available in the dual layout")
		return
	}
	if url == "" {
		t.hint("usage: /url <link>")
		return
	}
	if !t.ctrl.Affordances().Index {
		t.hint("%s", t.unavailable())
		return
	}
	if done, ok := t.ctrl.StartIndex(url); ok {
		t.spawn(ctx, done)
	}
}

func (t *Terminal) remove() {
	if t.ctrl.Snapshot().Context.Kind == chat.SourceNone {
		t.hint("no context to remove")
		return
	}
	t.ctrl.RemoveContext()
}

func (t *Terminal) spawn(ctx context.Context, done chat.Completion) {
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		done(ctx)
	}()
}

func (t *Terminal) unavailable() string {
	s := t.ctrl.Snapshot()
	if s.Busy() {
		return busyHint(s)
	}
	return fmt.Sprintf("%s is already the context; /remove it first", s.Context.Label)
}

func busyHint(s chat.State) string {
	switch {
	case s.Uploading:
		return "Processing file..."
	case s.Indexing:
		return "Indexing URL..."
	default:
		return "Waiting for response..."
	}
}

func (t *Terminal) help() {
	lines := []string{"commands: /upload <file>"}
	if t.ctrl.Layout() == chat.LayoutDual {
		lines = append(lines, "/url <link>")
	}
	lines = append(lines, "/remove", "/status", "/quit")
	t.hint("%s; anything else is a question", strings.Join(lines, ", "))
}

func (t *Terminal) status() {
	s := t.ctrl.Snapshot()
	src := "none"
	if s.Context.Kind != chat.SourceNone {
		src = fmt.Sprintf("%s %s", s.Context.Kind, s.Context.Label)
	}
	t.hint("session %s | context: %s | uploading=%t indexing=%t waiting=%t",
		t.ctrl.SessionID(), src, s.Uploading, s.Indexing, s.Loading)
}

func (t *Terminal) hint(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	hintColor.Fprintf(t.out, "  "+format+"\n", args...)
}

// render prints messages appended since the last call, then any placeholder
// that has since been resolved.
func (t *Terminal) render(s chat.State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, m := range s.Messages[min(t.rendered, len(s.Messages)):] {
		t.print(m)
		if m.Pending() {
			t.waiting[m.ID] = true
		}
	}
	t.rendered = len(s.Messages)

	for id := range t.waiting {
		if m, ok := s.Find(id); ok && !m.Pending() {
			t.print(m)
			delete(t.waiting, id)
		}
	}
}

func (t *Terminal) print(m chat.Message) {
	switch {
	case m.Type == chat.RoleUser:
		userColor.Fprintf(t.out, "you> %s\n", m.Content)
	case m.Pending():
		loadingColor.Fprintf(t.out, "docury> %s\n", m.Content)
	case m.Error:
		errorColor.Fprintf(t.out, "%s%s\n", prefix(m), m.Content)
	case m.Type == chat.RoleSystem:
		systemColor.Fprintf(t.out, "* %s\n", m.Content)
	default:
		aiColor.Fprintf(t.out, "docury> %s\n", m.Content)
	}
}

func prefix(m chat.Message) string {
	if m.Type == chat.RoleSystem {
		return "* "
	}
	return "docury> "
}
