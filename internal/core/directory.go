package core

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"visra.app/studio/internal/store"
	"visra.app/studio/pkg/logger"
	"visra.app/studio/pkg/metrics"
)

// SessionSummary is a session without its messages.
type SessionSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Timestamp    int64  `json:"timestamp"`
	MessageCount int    `json:"messageCount"`
}

// Directory owns the session collection, newest-created first, and writes the
// whole list through to the store after every mutation. A failed write keeps the
// in-memory change and returns an error wrapping store.ErrWriteFailed.
type Directory struct {
	mu       sync.Mutex
	store    *store.Store
	sessions []store.ChatSession
	log      *logger.Logger
	now      func() time.Time
}

// NewDirectory loads the saved history. A history that cannot be decoded is an
// error rather than an empty list, so it is never overwritten by accident.
func NewDirectory(st *store.Store, log *logger.Logger) (*Directory, error) {
	d := &Directory{
		store:    st,
		sessions: []store.ChatSession{},
		log:      log.Named("directory"),
		now:      time.Now,
	}
	if _, err := st.Load(store.KeyHistory, &d.sessions); err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}
	if d.sessions == nil {
		d.sessions = []store.ChatSession{}
	}
	metrics.SessionsActive.Set(float64(len(d.sessions)))
	d.log.Info("session history loaded", zap.Int("sessions", len(d.sessions)))
	return d, nil
}

// Create adds a session at the front of the list.
func (d *Directory) Create(title string, messages []store.Message) (store.ChatSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	session := store.ChatSession{
		ID:        newID(),
		Title:     title,
		Timestamp: d.now().UnixMilli(),
		Messages:  store.CloneMessages(messages),
	}
	d.sessions = append([]store.ChatSession{session}, d.sessions...)
	return store.CloneSession(session), d.persistLocked()
}

func (d *Directory) List() []store.ChatSession {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]store.ChatSession, len(d.sessions))
	for i, s := range d.sessions {
		out[i] = store.CloneSession(s)
	}
	return out
}

func (d *Directory) Summaries() []SessionSummary {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]SessionSummary, len(d.sessions))
	for i, s := range d.sessions {
		out[i] = SessionSummary{ID: s.ID, Title: s.Title, Timestamp: s.Timestamp, MessageCount: len(s.Messages)}
	}
	return out
}

func (d *Directory) Get(id string) (store.ChatSession, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if i := d.indexLocked(id); i >= 0 {
		return store.CloneSession(d.sessions[i]), true
	}
	return store.ChatSession{}, false
}

// Rename replaces a session's title. Any non-blank title is accepted as is.
func (d *Directory) Rename(id, title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.indexLocked(id)
	if i < 0 {
		return ErrSessionNotFound
	}
	d.sessions[i].Title = title
	return d.persistLocked()
}

func (d *Directory) Delete(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.indexLocked(id)
	if i < 0 {
		return ErrSessionNotFound
	}
	d.sessions = append(d.sessions[:i:i], d.sessions[i+1:]...)
	return d.persistLocked()
}

// Sync replaces a session's messages and bumps its timestamp to now.
func (d *Directory) Sync(id string, messages []store.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.indexLocked(id)
	if i < 0 {
		return ErrSessionNotFound
	}
	d.sessions[i].Messages = store.CloneMessages(messages)
	d.sessions[i].Timestamp = d.now().UnixMilli()
	return d.persistLocked()
}

func (d *Directory) indexLocked(id string) int {
	for i, s := range d.sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (d *Directory) persistLocked() error {
	metrics.SessionsActive.Set(float64(len(d.sessions)))
	if err := d.store.Save(store.KeyHistory, d.sessions); err != nil {
		metrics.PersistFailuresTotal.WithLabelValues(store.KeyHistory).Inc()
		d.log.Error("failed to persist session history", zap.Error(err))
		return err
	}
	return nil
}
