package story

import (
	"context"
	"errors"
	"strings"

	genai "google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiLLM implements LLMClient on the Google GenAI SDK.
type GeminiLLM struct {
	client      *genai.Client
	model       string
	temperature float64
}

func NewGeminiLLM(ctx context.Context, cfg *LLMSettings) (*GeminiLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key missing; provide llm.api_key or GOOGLE_API_KEY")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &GeminiLLM{client: c, model: model, temperature: cfg.Temperature}, nil
}

func (g *GeminiLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt.User, genai.RoleUser)}

	gc := &genai.GenerateContentConfig{}
	if prompt.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}
	if g.temperature > 0 {
		t := float32(g.temperature)
		gc.Temperature = &t
	}
	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, gc)
	if err != nil {
		return "", err
	}
	text := res.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}
