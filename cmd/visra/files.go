package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"visra.app/studio/internal/datauri"
)

// fileDataURI reads an image file into a data URI. Non-image files are refused
// the same way the upload path refuses them.
func fileDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	mimeType := http.DetectContentType(data)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("%s is %s: only image files are supported", path, mimeType)
	}
	return datauri.Encode(mimeType, data), nil
}
