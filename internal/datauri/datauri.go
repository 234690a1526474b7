// Package datauri splits and builds base64 data URIs of the form
// "data:<mime>;base64,<payload>".
package datauri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrMalformed = errors.New("malformed data URI")

var mimePattern = regexp.MustCompile(`:(.*?);`)

// Inline is a decomposed data URI. Data is still base64 encoded.
type Inline struct {
	MIMEType string
	Data     string
}

// Parse splits uri into its MIME type and payload. The URI must consist of exactly
// one header and one payload separated by a comma, and the header must carry a
// ":<mime>;" section.
func Parse(uri string) (Inline, error) {
	parts := strings.Split(uri, ",")
	if len(parts) != 2 {
		return Inline{}, fmt.Errorf("%w: expected header and payload, got %d parts", ErrMalformed, len(parts))
	}
	m := mimePattern.FindStringSubmatch(parts[0])
	if m == nil {
		return Inline{}, fmt.Errorf("%w: no mime type in header %q", ErrMalformed, parts[0])
	}
	return Inline{MIMEType: m[1], Data: parts[1]}, nil
}

// Bytes decodes the payload.
func (i Inline) Bytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(i.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return b, nil
}

// Decode parses uri and decodes its payload in one step.
func Decode(uri string) (mimeType string, data []byte, err error) {
	in, err := Parse(uri)
	if err != nil {
		return "", nil, err
	}
	data, err = in.Bytes()
	if err != nil {
		return "", nil, err
	}
	return in.MIMEType, data, nil
}

// Encode builds a base64 data URI.
func Encode(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// IsImage reports whether uri parses and declares an image/* MIME type.
func IsImage(uri string) bool {
	in, err := Parse(uri)
	return err == nil && strings.HasPrefix(in.MIMEType, "image/")
}
