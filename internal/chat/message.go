package chat

type Role string

const (
	RoleUser   Role = "user"
	RoleAI     Role = "ai"
	RoleSystem Role = "system"
)

const (
	WelcomeID       = "welcome-message"
	PlaceholderText = "..."
	FailureText     = "Sorry, an error occurred while fetching the response."
	NoResponseText  = "No response received."
)

// Message is one timeline entry. Only entries that are later replaced carry an
// ID; everything else is located by position and never changes.
type Message struct {
	ID        string `json:"id,omitempty"`
	Type      Role   `json:"type"`
	Content   string `json:"content"`
	IsLoading bool   `json:"isLoading,omitempty"`
	Error     bool   `json:"error,omitempty"`
}

// Pending reports whether m is an AI placeholder still waiting for its reply.
func (m Message) Pending() bool {
	return m.Type == RoleAI && m.IsLoading
}

func systemMessage(content string) Message {
	return Message{Type: RoleSystem, Content: content}
}

func systemError(content string) Message {
	return Message{Type: RoleSystem, Content: content, Error: true}
}
