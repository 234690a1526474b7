package core

import (
	"testing"

	"visra.app/studio/internal/imagegen"
)

func TestBuildRequestOrder(t *testing.T) {
	req := BuildRequest("add plants", roomURI, maskURI)
	if len(req.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(req.Parts))
	}
	img, ok := req.Parts[0].(imagegen.ImagePart)
	if !ok || img.MIMEType != "image/png" {
		t.Errorf("part 0 = %#v", req.Parts[0])
	}
	if _, ok := req.Parts[1].(imagegen.ImagePart); !ok {
		t.Errorf("part 1 = %#v", req.Parts[1])
	}
	if req.Parts[2] != (imagegen.TextPart{Text: "add plants"}) {
		t.Errorf("part 2 = %#v", req.Parts[2])
	}
}

func TestBuildRequestSkipsMalformedImages(t *testing.T) {
	req := BuildRequest("hi", "not a data uri", maskURI)
	if len(req.Parts) != 1 {
		t.Fatalf("expected only the text part, got %#v", req.Parts)
	}
	if req.Parts[0] != (imagegen.TextPart{Text: "hi"}) {
		t.Errorf("part = %#v", req.Parts[0])
	}
}

func TestBuildRequestDefaultText(t *testing.T) {
	req := BuildRequest("", roomURI, "")
	if len(req.Parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(req.Parts))
	}
	if req.Parts[1] != (imagegen.TextPart{Text: DefaultInstruction}) {
		t.Errorf("text part = %#v", req.Parts[1])
	}
}
