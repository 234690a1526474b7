package imagegen

import (
	"testing"

	"github.com/google/generative-ai-go/genai"

	"visra.app/studio/pkg/logger"
)

func TestResponseTextAndImage(t *testing.T) {
	resp := &Response{Parts: []Part{
		TextPart{Text: "Warm oak "},
		ImagePart{Data: []byte{1, 2, 3}},
		TextPart{Text: "and linen."},
		ImagePart{MIMEType: "image/jpeg", Data: []byte{4}},
	}}
	if got := resp.Text(); got != "Warm oak and linen." {
		t.Errorf("Text() = %q", got)
	}
	img, ok := resp.FirstImage()
	if !ok {
		t.Fatal("FirstImage found nothing")
	}
	if img.MIMEType != DefaultImageMIME {
		t.Errorf("MIMEType = %q, want %q", img.MIMEType, DefaultImageMIME)
	}
	if len(img.Data) != 3 {
		t.Errorf("first image data = %v", img.Data)
	}
}

func TestResponseEmpty(t *testing.T) {
	var nilResp *Response
	if nilResp.Text() != "" {
		t.Error("nil response has text")
	}
	if _, ok := (&Response{}).FirstImage(); ok {
		t.Error("empty response has an image")
	}
}

func TestToGeminiPartsOrder(t *testing.T) {
	parts, err := toGeminiParts([]Part{
		ImagePart{MIMEType: "image/png", Data: []byte{1}},
		ImagePart{MIMEType: "image/png", Data: []byte{2}},
		TextPart{Text: "Make the floor wood"},
	})
	if err != nil {
		t.Fatalf("toGeminiParts: %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("got %d parts", len(parts))
	}
	if b, ok := parts[0].(genai.Blob); !ok || b.Data[0] != 1 {
		t.Errorf("part 0 = %#v, want source blob", parts[0])
	}
	if b, ok := parts[1].(genai.Blob); !ok || b.Data[0] != 2 {
		t.Errorf("part 1 = %#v, want mask blob", parts[1])
	}
	if txt, ok := parts[2].(genai.Text); !ok || string(txt) != "Make the floor wood" {
		t.Errorf("part 2 = %#v, want text", parts[2])
	}
}

func TestFromGeminiContent(t *testing.T) {
	resp := fromGeminiContent(&genai.Content{Parts: []genai.Part{
		genai.Text("Here is "),
		genai.Blob{MIMEType: "image/png", Data: []byte{9}},
		genai.Text("your room."),
	}}, logger.Nop())
	if resp.Text() != "Here is your room." {
		t.Errorf("Text() = %q", resp.Text())
	}
	if img, ok := resp.FirstImage(); !ok || img.Data[0] != 9 {
		t.Errorf("FirstImage = %+v, %v", img, ok)
	}
	if got := fromGeminiContent(nil, logger.Nop()); len(got.Parts) != 0 {
		t.Errorf("nil content produced parts: %+v", got.Parts)
	}
}

func TestSplitParts(t *testing.T) {
	prompt, images, err := splitParts([]Part{
		ImagePart{MIMEType: "image/png"},
		TextPart{Text: "first"},
		TextPart{Text: "second"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if prompt != "first\nsecond" {
		t.Errorf("prompt = %q", prompt)
	}
	if len(images) != 1 {
		t.Errorf("images = %d, want 1", len(images))
	}
}
