package chat

import "fmt"

type SourceKind string

const (
	SourceNone SourceKind = ""
	SourceFile SourceKind = "file"
	SourceURL  SourceKind = "url"
)

// Source is the single context the backend retrieves from for this session.
type Source struct {
	Kind  SourceKind `json:"kind"`
	Label string     `json:"label"`
}

// State is everything the front end renders. It is only ever produced by
// Reduce; the controller owns the current value.
type State struct {
	Messages  []Message `json:"messages"`
	Context   Source    `json:"context"`
	Uploading bool      `json:"isUploading"`
	Indexing  bool      `json:"isIndexing"`
	Loading   bool      `json:"isLoading"`
}

// NewState returns the initial state for layout: no context, nothing in
// flight, and the greeting as the only message.
func NewState(layout Layout) State {
	return State{
		Messages: []Message{{ID: WelcomeID, Type: RoleAI, Content: layout.greeting()}},
	}
}

// Busy reports whether any request is in flight. Chat input is blocked while
// it is true.
func (s State) Busy() bool {
	return s.Uploading || s.Indexing || s.Loading
}

func (s State) UploadedFileName() string {
	if s.Context.Kind == SourceFile {
		return s.Context.Label
	}
	return ""
}

func (s State) IndexedURL() string {
	if s.Context.Kind == SourceURL {
		return s.Context.Label
	}
	return ""
}

// Find returns the message carrying id.
func (s State) Find(id string) (Message, bool) {
	for _, m := range s.Messages {
		if id != "" && m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

func (s State) clone() State {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	return out
}

// Event is a state transition. The concrete types below are the only events.
type Event interface {
	event()
}

type (
	// TurnStarted appends the user's text and a loading placeholder.
	TurnStarted struct{ Text, PlaceholderID string }
	// TurnAnswered resolves the placeholder with the backend's answer.
	TurnAnswered struct{ PlaceholderID, Answer string }
	// TurnFailed marks the placeholder as failed.
	TurnFailed struct{ PlaceholderID string }

	// UploadStarted tentatively records the file as the context.
	UploadStarted struct{ Name string }
	UploadConfirmed struct{ Name string }
	// UploadFailed compensates UploadStarted.
	UploadFailed struct{ Name string }

	IndexStarted   struct{ URL string }
	IndexConfirmed struct{ URL string }
	IndexFailed    struct{ URL string }

	ContextRemoved struct{}
)

func (TurnStarted) event()     {}
func (TurnAnswered) event()    {}
func (TurnFailed) event()      {}
func (UploadStarted) event()   {}
func (UploadConfirmed) event() {}
func (UploadFailed) event()    {}
func (IndexStarted) event()    {}
func (IndexConfirmed) event()  {}
func (IndexFailed) event()     {}
func (ContextRemoved) event()  {}

// Reduce applies ev to s and returns the new state. s is not modified.
func Reduce(s State, ev Event) State {
	next := s.clone()

	switch ev := ev.(type) {
	case TurnStarted:
		next.Messages = append(next.Messages,
			Message{Type: RoleUser, Content: ev.Text},
			Message{ID: ev.PlaceholderID, Type: RoleAI, Content: PlaceholderText, IsLoading: true},
		)
		next.Loading = true

	case TurnAnswered:
		next.replace(ev.PlaceholderID, func(m *Message) {
			m.Content = ev.Answer
			m.IsLoading = false
		})
		next.Loading = false

	case TurnFailed:
		next.replace(ev.PlaceholderID, func(m *Message) {
			m.Content = FailureText
			m.IsLoading = false
			m.Error = true
		})
		next.Loading = false

	case UploadStarted:
		next.Uploading = true
		next.Context = Source{Kind: SourceFile, Label: ev.Name}
		next.Messages = append(next.Messages, systemMessage(fmt.Sprintf("Uploading file: %s...", ev.Name)))

	case UploadConfirmed:
		next.Uploading = false
		next.Messages = append(next.Messages,
			systemMessage(fmt.Sprintf("File %q successfully processed and ready for RAG.", ev.Name)))

	case UploadFailed:
		next.Uploading = false
		next.rollback(Source{Kind: SourceFile, Label: ev.Name})
		next.Messages = append(next.Messages,
			systemError(fmt.Sprintf("Error processing file %q. Please try again.", ev.Name)))

	case IndexStarted:
		next.Indexing = true
		next.Context = Source{Kind: SourceURL, Label: ev.URL}
		next.Messages = append(next.Messages, systemMessage(fmt.Sprintf("Indexing URL: %s...", ev.URL)))

	case IndexConfirmed:
		next.Indexing = false
		next.Messages = append(next.Messages,
			systemMessage(fmt.Sprintf("URL %q successfully indexed and ready for RAG.", ev.URL)))

	case IndexFailed:
		next.Indexing = false
		next.rollback(Source{Kind: SourceURL, Label: ev.URL})
		next.Messages = append(next.Messages,
			systemError(fmt.Sprintf("Error indexing URL %q. Please try again.", ev.URL)))

	case ContextRemoved:
		next.Messages = append(next.Messages, systemMessage(removalNotice(next.Context.Kind)))
		next.Context = Source{}
	}

	return next
}

// replace edits the message with the given id in place. Other entries,
// including ones appended after the placeholder, are left alone.
func (s *State) replace(id string, edit func(*Message)) {
	for i := range s.Messages {
		if id != "" && s.Messages[i].ID == id {
			edit(&s.Messages[i])
			return
		}
	}
}

// rollback clears the context only if it still holds src; a removal that
// raced the failed request has already cleared it.
func (s *State) rollback(src Source) {
	if s.Context == src {
		s.Context = Source{}
	}
}

func removalNotice(kind SourceKind) string {
	switch kind {
	case SourceFile:
		return "File context removed. Chat session continues without RAG context."
	case SourceURL:
		return "URL context removed. Chat session continues without RAG context."
	}
	return "Context removed. Chat session continues without RAG context."
}
