// Package imagegen is the boundary to the remote image+text generation service.
// Requests and responses are sequences of tagged parts; providers translate them
// to and from their own wire types.
package imagegen

import (
	"context"
	"errors"
	"strings"
)

// DefaultImageMIME is assumed for returned images that declare no MIME type.
const DefaultImageMIME = "image/png"

// ErrEmptyResponse is returned when the service answered without any candidate.
var ErrEmptyResponse = errors.New("generation service returned no candidates")

// Part is either a TextPart or an ImagePart.
type Part interface {
	isPart()
}

type TextPart struct {
	Text string
}

// ImagePart carries raw (decoded) image bytes.
type ImagePart struct {
	MIMEType string
	Data     []byte
}

func (TextPart) isPart()  {}
func (ImagePart) isPart() {}

type Request struct {
	SystemInstruction string
	Parts             []Part
}

type Response struct {
	Parts []Part
}

// Text concatenates every text part.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Parts {
		if t, ok := p.(TextPart); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// FirstImage returns the first image part, with DefaultImageMIME filled in when the
// service left the MIME type empty.
func (r *Response) FirstImage() (ImagePart, bool) {
	if r == nil {
		return ImagePart{}, false
	}
	for _, p := range r.Parts {
		if img, ok := p.(ImagePart); ok {
			if img.MIMEType == "" {
				img.MIMEType = DefaultImageMIME
			}
			return img, true
		}
	}
	return ImagePart{}, false
}

// Generator calls the remote model once and waits for its full response.
type Generator interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
	Name() string
}
