package imagegen

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"visra.app/studio/pkg/logger"
)

const DefaultGeminiModel = "gemini-2.5-flash-image"

type GeminiGenerator struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string, log *logger.Logger) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiGenerator{client: client, model: model, log: log.Named("gemini")}, nil
}

func (g *GeminiGenerator) Name() string { return "gemini" }

func (g *GeminiGenerator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *GeminiGenerator) Generate(ctx context.Context, req *Request) (*Response, error) {
	model := g.client.GenerativeModel(g.model)
	if req.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemInstruction)},
		}
	}

	parts, err := toGeminiParts(req.Parts)
	if err != nil {
		return nil, err
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini GenerateContent failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}
	return fromGeminiContent(resp.Candidates[0].Content, g.log), nil
}

func toGeminiParts(parts []Part) ([]genai.Part, error) {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		switch p := p.(type) {
		case TextPart:
			out = append(out, genai.Text(p.Text))
		case ImagePart:
			out = append(out, genai.Blob{MIMEType: p.MIMEType, Data: p.Data})
		default:
			return nil, fmt.Errorf("unsupported request part %T", p)
		}
	}
	return out, nil
}

func fromGeminiContent(content *genai.Content, log *logger.Logger) *Response {
	resp := &Response{}
	if content == nil {
		return resp
	}
	for _, part := range content.Parts {
		switch v := part.(type) {
		case genai.Text:
			resp.Parts = append(resp.Parts, TextPart{Text: string(v)})
		case genai.Blob:
			resp.Parts = append(resp.Parts, ImagePart{MIMEType: v.MIMEType, Data: v.Data})
		default:
			log.Debug("ignoring response part", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}
	return resp
}
