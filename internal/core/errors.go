package core

import "errors"

var (
	ErrEmptyMessage       = errors.New("message has no text, image or pending edit")
	ErrGenerationInFlight = errors.New("a generation is already in progress")
	ErrGenerationStopped  = errors.New("generation stopped")
	ErrSessionNotFound    = errors.New("session not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrUnsupportedUpload  = errors.New("only image files are supported")
	ErrInvalidTheme       = errors.New("theme must be light, dark or system")
	ErrEmptyTitle         = errors.New("session title cannot be empty")
	ErrInvalidPendingEdit = errors.New("pending edit needs an image and a mask")
)

// User-facing notices.
const (
	noticeGenerationFailed = "Design generation failed. Please try again."
	noticeUnsupportedFile  = "Only image files are supported"
	noticeSaveFailed       = "Your conversation could not be saved."
)
