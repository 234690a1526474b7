package core

import "visra.app/studio/internal/store"

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseActive     Phase = "active-session"
	PhaseGenerating Phase = "generating"
	PhaseStopped    Phase = "stopped"
)

// State is a snapshot of the live conversation.
type State struct {
	Messages    []store.Message    `json:"messages"`
	SessionID   string             `json:"sessionId,omitempty"`
	StagedImage string             `json:"stagedImage,omitempty"`
	PendingEdit *store.PendingEdit `json:"pendingEdit,omitempty"`
	// Generating stays true from send until the reply is fully revealed.
	Generating bool `json:"generating"`
	// Typing is true only while the model call is outstanding.
	Typing  bool `json:"typing"`
	Stopped bool `json:"stopped"`
}

func (s State) Phase() Phase {
	switch {
	case s.Generating || s.Typing:
		return PhaseGenerating
	case s.Stopped:
		return PhaseStopped
	case s.SessionID != "" || len(s.Messages) > 0:
		return PhaseActive
	}
	return PhaseIdle
}

func (s State) clone() State {
	s.Messages = store.CloneMessages(s.Messages)
	if s.PendingEdit != nil {
		pe := *s.PendingEdit
		s.PendingEdit = &pe
	}
	return s
}

type EventKind string

const (
	EventState    EventKind = "state"
	EventSessions EventKind = "sessions"
	EventNotice   EventKind = "notice"
)

// Event is delivered to subscribers after every committed change.
type Event struct {
	Kind     EventKind        `json:"kind"`
	State    *State           `json:"state,omitempty"`
	Sessions []SessionSummary `json:"sessions"`
	Notice   string           `json:"notice,omitempty"`
}

// Listener receives events synchronously while the conversation is locked.
// It must not call back into the Conversation.
type Listener func(Event)

// Effect runs after a change to the message list has been committed.
type Effect func(State) error
