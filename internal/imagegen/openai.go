package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"visra.app/studio/internal/mask"
	"visra.app/studio/pkg/logger"
)

const DefaultOpenAIImageModel = openai.CreateImageModelDallE2

// OpenAIGenerator serves requests through the image generation and edit
// endpoints. The edit endpoint expects transparent pixels where the image may
// change, so the black/bright mask is converted before upload. It returns an
// image and, when present, the revised prompt as text.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	size   string
	log    *logger.Logger
}

func NewOpenAIGenerator(apiKey, model string, log *logger.Logger) *OpenAIGenerator {
	if model == "" {
		model = DefaultOpenAIImageModel
	}
	return &OpenAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
		size:   openai.CreateImageSize1024x1024,
		log:    log.Named("openai"),
	}
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) Generate(ctx context.Context, req *Request) (*Response, error) {
	prompt, images, err := splitParts(req.Parts)
	if err != nil {
		return nil, err
	}
	if req.SystemInstruction != "" {
		prompt = req.SystemInstruction + "\n\n" + prompt
	}

	var resp openai.ImageResponse
	if len(images) == 0 {
		resp, err = g.client.CreateImage(ctx, openai.ImageRequest{
			Prompt:         prompt,
			Model:          g.model,
			N:              1,
			Size:           g.size,
			ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		})
	} else {
		resp, err = g.edit(ctx, prompt, images)
	}
	if err != nil {
		return nil, fmt.Errorf("openai image request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyResponse
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode openai image: %w", err)
	}
	out := &Response{}
	if rp := strings.TrimSpace(resp.Data[0].RevisedPrompt); rp != "" {
		out.Parts = append(out.Parts, TextPart{Text: rp})
	}
	out.Parts = append(out.Parts, ImagePart{MIMEType: "image/png", Data: data})
	return out, nil
}

func (g *OpenAIGenerator) edit(ctx context.Context, prompt string, images []ImagePart) (openai.ImageResponse, error) {
	src, err := decodeImage(images[0])
	if err != nil {
		return openai.ImageResponse{}, err
	}
	imageFile, err := writeTempPNG(src)
	if err != nil {
		return openai.ImageResponse{}, err
	}
	defer removeTemp(imageFile)

	req := openai.ImageEditRequest{
		Image:          imageFile,
		Prompt:         prompt,
		Model:          g.model,
		N:              1,
		Size:           g.size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	}
	if len(images) > 1 {
		m, err := decodeImage(images[1])
		if err != nil {
			return openai.ImageResponse{}, err
		}
		maskFile, err := writeTempPNG(mask.ToAlpha(m))
		if err != nil {
			return openai.ImageResponse{}, err
		}
		defer removeTemp(maskFile)
		req.Mask = maskFile
	}
	return g.client.CreateEditImage(ctx, req)
}

// splitParts joins text parts into one prompt and collects images in order.
func splitParts(parts []Part) (string, []ImagePart, error) {
	var texts []string
	var images []ImagePart
	for _, p := range parts {
		switch p := p.(type) {
		case TextPart:
			texts = append(texts, p.Text)
		case ImagePart:
			images = append(images, p)
		default:
			return "", nil, fmt.Errorf("unsupported request part %T", p)
		}
	}
	return strings.Join(texts, "\n"), images, nil
}

func decodeImage(p ImagePart) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s part: %w", p.MIMEType, err)
	}
	return img, nil
}

func writeTempPNG(img image.Image) (*os.File, error) {
	f, err := os.CreateTemp("", "visra-*.png")
	if err != nil {
		return nil, fmt.Errorf("create temp image: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		removeTemp(f)
		return nil, fmt.Errorf("write temp image: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		removeTemp(f)
		return nil, fmt.Errorf("rewind temp image: %w", err)
	}
	return f, nil
}

func removeTemp(f *os.File) {
	f.Close()
	os.Remove(f.Name())
}
