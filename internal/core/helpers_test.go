package core

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"visra.app/studio/internal/imagegen"
	"visra.app/studio/internal/store"
	"visra.app/studio/pkg/logger"
)

const (
	roomURI = "data:image/png;base64,iVBORw0KGgo="
	maskURI = "data:image/png;base64,AAAAAAAA"
)

// fakeGenerator records requests and answers with a canned response. When
// release is set it blocks until the channel is closed.
type fakeGenerator struct {
	mu        sync.Mutex
	requests  []*imagegen.Request
	resp      *imagegen.Response
	err       error
	release   chan struct{}
	ignoreCtx bool
}

func (f *fakeGenerator) Generate(ctx context.Context, req *imagegen.Request) (*imagegen.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	release := f.release
	f.mu.Unlock()

	if release != nil {
		if f.ignoreCtx {
			<-release
		} else {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return f.resp, f.err
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) lastRequest(t *testing.T) *imagegen.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("generator was never called")
	}
	return f.requests[len(f.requests)-1]
}

func textResponse(text string) *imagegen.Response {
	return &imagegen.Response{Parts: []imagegen.Part{imagegen.TextPart{Text: text}}}
}

// manualTicker fires only when the test sends on its channel.
type manualTicker struct{ ch chan time.Time }

func (m manualTicker) C() <-chan time.Time { return m.ch }
func (m manualTicker) Stop()               {}

// instantTicks returns a ticker factory whose ticks are always ready.
func instantTicks() TickerFactory {
	ch := make(chan time.Time)
	close(ch)
	return func(time.Duration) Ticker { return manualTicker{ch: ch} }
}

func manualTicks() (TickerFactory, chan time.Time) {
	ch := make(chan time.Time)
	return func(time.Duration) Ticker { return manualTicker{ch: ch} }, ch
}

type harness struct {
	store *store.Store
	dir   *Directory
	conv  *Conversation

	mu     sync.Mutex
	events []Event
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(openKV(t))
}

func openKV(t *testing.T) *store.SQLiteKV {
	t.Helper()
	kv, err := store.NewSQLiteKV(filepath.Join(t.TempDir(), "visra.db"))
	if err != nil {
		t.Fatalf("NewSQLiteKV failed: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

// failingKV refuses writes to one key and passes everything else through.
type failingKV struct {
	store.KV
	key string
}

func (f failingKV) Put(key string, value []byte) error {
	if key == f.key {
		return errors.New("disk full")
	}
	return f.KV.Put(key, value)
}

func newHarness(t *testing.T, st *store.Store, gen imagegen.Generator, ticks TickerFactory) *harness {
	t.Helper()
	return newHarnessWith(t, st, gen, OrchestratorConfig{Timeout: 5 * time.Second, NewTicker: ticks})
}

func newHarnessWith(t *testing.T, st *store.Store, gen imagegen.Generator, cfg OrchestratorConfig) *harness {
	t.Helper()
	dir, err := NewDirectory(st, logger.Nop())
	if err != nil {
		t.Fatalf("NewDirectory failed: %v", err)
	}
	orch := NewOrchestrator(gen, cfg, logger.Nop())
	h := &harness{store: st, dir: dir, conv: NewConversation(st, dir, orch, logger.Nop())}
	h.conv.Subscribe(func(ev Event) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.events = append(h.events, ev)
	})
	return h
}

func (h *harness) notices() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, ev := range h.events {
		if ev.Kind == EventNotice {
			out = append(out, ev.Notice)
		}
	}
	return out
}

// assistantContents lists the distinct successive contents of the trailing
// assistant message seen in state events.
func (h *harness) assistantContents() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, ev := range h.events {
		if ev.Kind != EventState || len(ev.State.Messages) == 0 {
			continue
		}
		last := ev.State.Messages[len(ev.State.Messages)-1]
		if last.Role != store.RoleAssistant {
			continue
		}
		if len(out) == 0 || out[len(out)-1] != last.Content {
			out = append(out, last.Content)
		}
	}
	return out
}

func waitDone(t *testing.T, gen *Generation) {
	t.Helper()
	select {
	case <-gen.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not finish")
	}
}

func waitFor(t *testing.T, c *Conversation, what string, cond func(State) bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond(c.Snapshot()) {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
