package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"visra.app/studio/internal/store"
	"visra.app/studio/pkg/logger"
)

func newTestDirectory(t *testing.T, st *store.Store) *Directory {
	t.Helper()
	d, err := NewDirectory(st, logger.Nop())
	if err != nil {
		t.Fatalf("NewDirectory failed: %v", err)
	}
	return d
}

func TestDirectoryCreateNewestFirst(t *testing.T) {
	d := newTestDirectory(t, openStore(t))

	a, err := d.Create("a", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b, err := d.Create("b", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	list := d.List()
	if len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
		t.Fatalf("unexpected order: %+v", list)
	}
	if a.ID >= b.ID {
		t.Errorf("ids not increasing: %q then %q", a.ID, b.ID)
	}
	if list[1].Messages == nil {
		t.Error("messages should be an empty list, not nil")
	}
}

func TestDirectoryRename(t *testing.T) {
	d := newTestDirectory(t, openStore(t))
	s, _ := d.Create("old", nil)

	if err := d.Rename(s.ID, "Living room v2"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	got, _ := d.Get(s.ID)
	if got.Title != "Living room v2" {
		t.Errorf("title = %q", got.Title)
	}
	if err := d.Rename(s.ID, "  "); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("expected ErrEmptyTitle, got %v", err)
	}
	if err := d.Rename("missing", "x"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDirectorySyncBumpsTimestamp(t *testing.T) {
	d := newTestDirectory(t, openStore(t))
	now := time.UnixMilli(1_000)
	d.now = func() time.Time { return now }

	s, _ := d.Create("room", nil)
	now = time.UnixMilli(5_000)
	msgs := []store.Message{{ID: "m1", Role: store.RoleUser, Content: "hi"}}
	if err := d.Sync(s.ID, msgs); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	got, _ := d.Get(s.ID)
	if got.Timestamp != 5_000 {
		t.Errorf("timestamp = %d, want 5000", got.Timestamp)
	}
	if len(got.Messages) != 1 {
		t.Errorf("expected 1 message, got %d", len(got.Messages))
	}

	msgs[0].Content = "mutated"
	if got, _ := d.Get(s.ID); got.Messages[0].Content != "hi" {
		t.Error("directory shares the caller's slice")
	}
}

func TestDirectoryPersists(t *testing.T) {
	st := openStore(t)
	d := newTestDirectory(t, st)
	s, _ := d.Create("kept", nil)
	gone, _ := d.Create("gone", nil)
	if err := d.Delete(gone.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	reloaded := newTestDirectory(t, st)
	list := reloaded.List()
	if len(list) != 1 || list[0].ID != s.ID {
		t.Errorf("reloaded list = %+v", list)
	}
	if sums := reloaded.Summaries(); len(sums) != 1 || sums[0].Title != "kept" {
		t.Errorf("summaries = %+v", sums)
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "Make it cozy", "Make it cozy"},
		{"exactly thirty", strings.Repeat("x", 30), strings.Repeat("x", 30)},
		{"long", strings.Repeat("y", 31), strings.Repeat("y", 30) + "..."},
		{"multibyte", strings.Repeat("é", 35), strings.Repeat("é", 30) + "..."},
		{"blank", "  ", untitledTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTitle(tt.in); got != tt.want {
				t.Errorf("DeriveTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
