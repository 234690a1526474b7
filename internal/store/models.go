package store

// Keys of the four persisted records.
const (
	KeyHistory     = "visra_history"
	KeyCurrentChat = "visra_current_chat"
	KeyTheme       = "visra-theme"
	KeySkipLanding = "visra_skip_landing"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID      string `json:"id" yaml:"id"`
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
	Image   string `json:"image,omitempty" yaml:"image,omitempty"` // data URI
	Mask    string `json:"mask,omitempty" yaml:"mask,omitempty"`   // data URI
}

type ChatSession struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Timestamp int64     `json:"timestamp" yaml:"timestamp"` // unix millis of last modification
	Messages  []Message `json:"messages" yaml:"messages"`
}

// CurrentChat is the snapshot of the live conversation restored at startup.
type CurrentChat struct {
	SessionID *string   `json:"sessionId"`
	Messages  []Message `json:"messages"`
}

// PendingEdit pairs a source image with a mask awaiting a refinement prompt.
type PendingEdit struct {
	Image string `json:"image"`
	Mask  string `json:"mask"`
}

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// CloneMessages returns a copy of msgs that shares no backing array with it.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return []Message{}
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// CloneSession deep-copies a session's message slice.
func CloneSession(s ChatSession) ChatSession {
	s.Messages = CloneMessages(s.Messages)
	return s
}
