package core

import (
	"strings"

	"github.com/google/uuid"
)

const (
	titleMaxRunes = 30
	untitledTitle = "New design"
)

// newID returns a time-ordered identifier; later ids sort after earlier ones.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// DeriveTitle names a session after its first message: the text itself, or its
// first 30 characters followed by "..." when longer.
func DeriveTitle(text string) string {
	if strings.TrimSpace(text) == "" {
		return untitledTitle
	}
	r := []rune(text)
	if len(r) > titleMaxRunes {
		return string(r[:titleMaxRunes]) + "..."
	}
	return text
}
