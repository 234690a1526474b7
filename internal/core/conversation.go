package core

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"visra.app/studio/internal/datauri"
	"visra.app/studio/internal/store"
	"visra.app/studio/pkg/logger"
	"visra.app/studio/pkg/metrics"
)

// StoppedSuffix is appended to an assistant reply cut short by Stop.
const StoppedSuffix = " [Stopped]"

// SendInput is one user turn. Image and Mask are data URIs. A pending edit
// takes precedence over Image and Mask; a staged image fills in a missing Image.
type SendInput struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
	Mask  string `json:"mask,omitempty"`
}

// Generation is the handle of one in-flight model call.
type Generation struct {
	token     uint64
	sessionID string
	message   store.Message
	ctx       context.Context
	done      chan struct{}
	err       error
}

// Done is closed once the generation has finished, failed or been stopped.
func (g *Generation) Done() <-chan struct{} { return g.done }

// Err is valid after Done is closed. It is nil on success and
// ErrGenerationStopped when the generation was stopped or superseded.
func (g *Generation) Err() error { return g.err }

// Message is the user message that started the generation.
func (g *Generation) Message() store.Message { return g.message }

func (g *Generation) SessionID() string { return g.sessionID }

func (g *Generation) finish(err error) {
	g.err = err
	close(g.done)
}

type listenerEntry struct {
	id int
	fn Listener
}

// Conversation is the live chat state machine. All transitions happen under
// one lock; effects and listeners run after each commit, still under it.
type Conversation struct {
	mu    sync.Mutex
	state State

	dir  *Directory
	orch *Orchestrator
	log  *logger.Logger

	effects      []Effect
	listeners    []listenerEntry
	nextListener int

	// token identifies the generation allowed to touch the state. Stop, NewChat,
	// SelectSession and deleting the active session bump it.
	token  uint64
	cancel context.CancelFunc
}

// NewConversation restores the last live conversation from st and registers
// the persistence effect.
func NewConversation(st *store.Store, dir *Directory, orch *Orchestrator, log *logger.Logger) *Conversation {
	c := &Conversation{
		state: State{Messages: []store.Message{}},
		dir:   dir,
		orch:  orch,
		log:   log.Named("conversation"),
	}
	c.restore(st)
	c.effects = append(c.effects, PersistEffect(st, dir))
	return c
}

func (c *Conversation) restore(st *store.Store) {
	var saved store.CurrentChat
	ok, err := st.Load(store.KeyCurrentChat, &saved)
	if err != nil {
		c.log.Warn("failed to restore current chat, starting fresh", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	c.state.Messages = store.CloneMessages(saved.Messages)
	if saved.SessionID != nil {
		if _, known := c.dir.Get(*saved.SessionID); known {
			c.state.SessionID = *saved.SessionID
		} else {
			c.log.Warn("current chat refers to an unknown session", zap.String("session_id", *saved.SessionID))
		}
	}
	c.log.Info("current chat restored",
		zap.String("session_id", c.state.SessionID),
		zap.Int("messages", len(c.state.Messages)))
}

// PersistEffect saves the live messages as the current chat and mirrors them
// into the active session.
func PersistEffect(st *store.Store, dir *Directory) Effect {
	return func(s State) error {
		var sessionID *string
		if s.SessionID != "" {
			id := s.SessionID
			sessionID = &id
		}

		var errs []error
		if err := st.Save(store.KeyCurrentChat, store.CurrentChat{SessionID: sessionID, Messages: s.Messages}); err != nil {
			metrics.PersistFailuresTotal.WithLabelValues(store.KeyCurrentChat).Inc()
			errs = append(errs, err)
		}
		if s.SessionID != "" && len(s.Messages) > 0 {
			if err := dir.Sync(s.SessionID, s.Messages); err != nil && !errors.Is(err, ErrSessionNotFound) {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// DeleteSavedSession removes a session when no live Conversation is running.
// A saved current chat that belongs to the session is reset to an empty chat,
// the same outcome as Conversation.DeleteSession on the active session.
func DeleteSavedSession(st *store.Store, dir *Directory, id string) error {
	if err := dir.Delete(id); err != nil {
		return err
	}
	var saved store.CurrentChat
	ok, err := st.Load(store.KeyCurrentChat, &saved)
	if err != nil || !ok || saved.SessionID == nil || *saved.SessionID != id {
		return nil
	}
	if err := st.Save(store.KeyCurrentChat, store.CurrentChat{Messages: []store.Message{}}); err != nil {
		metrics.PersistFailuresTotal.WithLabelValues(store.KeyCurrentChat).Inc()
		return err
	}
	return nil
}

// Use registers an effect run after every message change.
func (c *Conversation) Use(effect Effect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.effects = append(c.effects, effect)
}

// Subscribe registers l for every future event and returns a function that
// removes it.
func (c *Conversation) Subscribe(l Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextListener++
	id := c.nextListener
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: l})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, e := range c.listeners {
			if e.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *Conversation) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Conversation) Sessions() []SessionSummary {
	return c.dir.Summaries()
}

func (c *Conversation) Session(id string) (store.ChatSession, bool) {
	return c.dir.Get(id)
}

// Send appends a user message, creates a session if none is active and starts
// the model call in the background. Nothing changes when there is nothing to
// send or a generation is already running.
func (c *Conversation) Send(ctx context.Context, in SendInput) (*Generation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Generating || c.state.Typing {
		return nil, ErrGenerationInFlight
	}

	image, mask := in.Image, in.Mask
	if pe := c.state.PendingEdit; pe != nil {
		image, mask = pe.Image, pe.Mask
	} else if image == "" {
		image = c.state.StagedImage
	}
	if strings.TrimSpace(in.Text) == "" && image == "" {
		return nil, ErrEmptyMessage
	}

	msg := store.Message{
		ID:      newID(),
		Role:    store.RoleUser,
		Content: in.Text,
		Image:   image,
		Mask:    mask,
	}
	c.state.Messages = append(store.CloneMessages(c.state.Messages), msg)
	metrics.MessagesTotal.WithLabelValues(string(store.RoleUser)).Inc()

	sessionsChanged := false
	if c.state.SessionID == "" {
		session, err := c.dir.Create(DeriveTitle(in.Text), c.state.Messages)
		if err != nil {
			c.reportPersistLocked(err)
		}
		c.state.SessionID = session.ID
		sessionsChanged = true
	}

	c.state.PendingEdit = nil
	c.state.StagedImage = ""
	c.state.Generating = true
	c.state.Typing = true
	c.state.Stopped = false

	gen := c.beginGenerationLocked(ctx, msg)
	c.commitLocked(true)
	if sessionsChanged {
		c.emitSessionsLocked()
	}

	c.log.Info("message sent",
		zap.String("session_id", gen.sessionID),
		zap.String("message_id", msg.ID),
		zap.Bool("image", msg.Image != ""),
		zap.Bool("mask", msg.Mask != ""))

	go c.orch.run(gen, c)
	return gen, nil
}

// beginGenerationLocked issues a fresh token. The call outlives ctx's
// cancellation; only Stop and its siblings end it.
func (c *Conversation) beginGenerationLocked(ctx context.Context, msg store.Message) *Generation {
	c.token++
	genCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	return &Generation{
		token:     c.token,
		sessionID: c.state.SessionID,
		message:   msg,
		ctx:       genCtx,
		done:      make(chan struct{}),
	}
}

// invalidateLocked makes any outstanding generation stale.
func (c *Conversation) invalidateLocked() {
	c.token++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Stop halts the current generation. The partially revealed reply, if any,
// keeps its text with StoppedSuffix appended. Stop reports false when idle.
func (c *Conversation) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Generating && !c.state.Typing {
		return false
	}
	c.stopLocked()
	return true
}

func (c *Conversation) stopLocked() {
	c.invalidateLocked()
	c.state.Generating = false
	c.state.Typing = false
	c.state.Stopped = true

	msgs := c.state.Messages
	if n := len(msgs); n > 0 && msgs[n-1].Role == store.RoleAssistant {
		msgs = store.CloneMessages(msgs)
		msgs[n-1].Content += StoppedSuffix
		c.state.Messages = msgs
		c.log.Info("generation stopped mid-reveal", zap.String("session_id", c.state.SessionID))
		c.commitLocked(true)
		return
	}
	c.log.Info("generation stopped", zap.String("session_id", c.state.SessionID))
	c.commitLocked(false)
}

// UpdateMessage replaces the content of one message in the live conversation.
func (c *Conversation) UpdateMessage(id, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, m := range c.state.Messages {
		if m.ID == id {
			msgs := store.CloneMessages(c.state.Messages)
			msgs[i].Content = content
			c.state.Messages = msgs
			c.commitLocked(true)
			return nil
		}
	}
	return ErrMessageNotFound
}

// NewChat stops any generation and clears the live conversation. Saved
// sessions are untouched.
func (c *Conversation) NewChat() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Generating || c.state.Typing {
		c.stopLocked()
	}
	c.state = State{Messages: []store.Message{}}
	c.commitLocked(true)
}

// SelectSession loads a saved session's messages into the live conversation.
func (c *Conversation) SelectSession(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.dir.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	if c.state.Generating || c.state.Typing {
		c.stopLocked()
	}
	c.state = State{
		Messages:  store.CloneMessages(session.Messages),
		SessionID: session.ID,
	}
	c.commitLocked(true)
	return nil
}

func (c *Conversation) RenameSession(id, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.dir.Rename(id, title); err != nil {
		if !errors.Is(err, store.ErrWriteFailed) {
			return err
		}
		c.reportPersistLocked(err)
	}
	c.emitSessionsLocked()
	return nil
}

// DeleteSession removes a saved session. Deleting the active session also
// clears the live conversation.
func (c *Conversation) DeleteSession(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.dir.Get(id); !ok {
		return ErrSessionNotFound
	}
	if id == c.state.SessionID {
		c.invalidateLocked()
		c.state = State{Messages: []store.Message{}}
		c.commitLocked(true)
	}
	if err := c.dir.Delete(id); err != nil {
		if !errors.Is(err, store.ErrWriteFailed) {
			return err
		}
		c.reportPersistLocked(err)
	}
	c.emitSessionsLocked()
	return nil
}

// StageImage holds an uploaded image for the next send. Only image data URIs
// are accepted.
func (c *Conversation) StageImage(uri string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !datauri.IsImage(uri) {
		c.noticeLocked(noticeUnsupportedFile)
		return ErrUnsupportedUpload
	}
	c.state.StagedImage = uri
	c.commitLocked(false)
	return nil
}

func (c *Conversation) ClearStagedImage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.StagedImage = ""
	c.commitLocked(false)
}

// SetPendingEdit holds an image and its mask until the next send.
func (c *Conversation) SetPendingEdit(pe store.PendingEdit) error {
	if pe.Image == "" || pe.Mask == "" {
		return ErrInvalidPendingEdit
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.PendingEdit = &pe
	c.commitLocked(false)
	return nil
}

func (c *Conversation) ClearPendingEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.PendingEdit = nil
	c.commitLocked(false)
}

func (c *Conversation) beginReply(token uint64, image string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.token {
		return false
	}
	c.state.Messages = append(store.CloneMessages(c.state.Messages), store.Message{
		ID:    newID(),
		Role:  store.RoleAssistant,
		Image: image,
	})
	c.state.Typing = false
	metrics.MessagesTotal.WithLabelValues(string(store.RoleAssistant)).Inc()
	c.commitLocked(true)
	return true
}

func (c *Conversation) revealReply(token uint64, content string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.token {
		return false
	}
	n := len(c.state.Messages)
	if n == 0 || c.state.Messages[n-1].Role != store.RoleAssistant {
		return false
	}
	msgs := store.CloneMessages(c.state.Messages)
	msgs[n-1].Content = content
	c.state.Messages = msgs
	c.commitLocked(true)
	return true
}

func (c *Conversation) finishReply(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.token {
		return false
	}
	c.invalidateLocked()
	c.state.Generating = false
	c.state.Typing = false
	c.commitLocked(false)
	return true
}

func (c *Conversation) failReply(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.token {
		return false
	}
	c.invalidateLocked()
	c.state.Generating = false
	c.state.Typing = false
	c.commitLocked(false)
	c.noticeLocked(noticeGenerationFailed)
	return true
}

// commitLocked runs the effects when persist is set and notifies listeners.
func (c *Conversation) commitLocked(persist bool) {
	snap := c.state.clone()
	if persist {
		for _, effect := range c.effects {
			if err := effect(snap); err != nil {
				c.reportPersistLocked(err)
			}
		}
	}
	c.emitLocked(Event{Kind: EventState, State: &snap})
}

func (c *Conversation) reportPersistLocked(err error) {
	c.log.Error("failed to persist conversation", zap.Error(err))
	c.noticeLocked(noticeSaveFailed)
}

func (c *Conversation) noticeLocked(text string) {
	c.emitLocked(Event{Kind: EventNotice, Notice: text})
}

func (c *Conversation) emitSessionsLocked() {
	c.emitLocked(Event{Kind: EventSessions, Sessions: c.dir.Summaries()})
}

func (c *Conversation) emitLocked(ev Event) {
	for _, l := range c.listeners {
		l.fn(ev)
	}
}
