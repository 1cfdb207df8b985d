package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyStory is returned when the model produced no usable text.
var ErrEmptyStory = errors.New("model returned empty story")

// Agent renders the story prompt and asks the LLM for the text.
type Agent struct {
	llm LLMClient
}

func NewAgent(llm LLMClient) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	return &Agent{llm: llm}, nil
}

// Write returns the raw story text for p.
func (a *Agent) Write(ctx context.Context, p Params) (string, error) {
	raw, err := a.llm.Complete(ctx, BuildStoryPrompt(p))
	if err != nil {
		return "", fmt.Errorf("story generation: %w", err)
	}
	text := stripCodeFences(raw)
	if text == "" {
		return "", ErrEmptyStory
	}
	return text, nil
}

// stripCodeFences removes a ```markdown wrapper some models add around the answer.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.Index(s, "\n"); nl != -1 {
			s = s[nl+1:]
		} else {
			s = ""
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	return s
}
