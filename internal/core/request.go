package core

import (
	"strings"

	"visra.app/studio/internal/datauri"
	"visra.app/studio/internal/imagegen"
)

// DefaultInstruction is sent when the user supplies no text.
const DefaultInstruction = "Redesign the following interior space with modern principles."

// SystemInstruction frames every generation request.
const SystemInstruction = "You are Visra, a premium AI interior architect. " +
	"When provided with an image, you must generate a new visualization part and provide professional design commentary. " +
	"Focus on high-fidelity realism, spatial flow, and natural lighting. " +
	"If a mask is provided (the second image part), prioritize editing that specific area."

// BuildRequest assembles the parts for one generation: the image, then the
// mask, then the text. Malformed data URIs are left out. A mask without a
// usable image is dropped too, since the model would read it as the photo.
func BuildRequest(text, image, mask string) *imagegen.Request {
	req := &imagegen.Request{SystemInstruction: SystemInstruction}

	if part, ok := inlineImage(image); ok {
		req.Parts = append(req.Parts, part)
		if part, ok := inlineImage(mask); ok {
			req.Parts = append(req.Parts, part)
		}
	}

	if strings.TrimSpace(text) == "" {
		text = DefaultInstruction
	}
	req.Parts = append(req.Parts, imagegen.TextPart{Text: text})
	return req
}

func inlineImage(uri string) (imagegen.ImagePart, bool) {
	if uri == "" {
		return imagegen.ImagePart{}, false
	}
	mimeType, data, err := datauri.Decode(uri)
	if err != nil {
		return imagegen.ImagePart{}, false
	}
	return imagegen.ImagePart{MIMEType: mimeType, Data: data}, true
}
