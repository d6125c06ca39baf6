// Package assistant produces chat and quote replies through an ADK model:
// Moonshot's Kimi by default, Gemini when configured.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tradesdesk_backend/internal/conversation"
	"tradesdesk_backend/platform/ai/moonshot"
	"tradesdesk_backend/platform/config"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

const maxOutputTokens int32 = 1024

var ErrEmptyReply = errors.New("assistant returned no text")

// Service implements conversation.Completer over a model.LLM.
type Service struct {
	llm model.LLM
}

var _ conversation.Completer = (*Service)(nil)

// New wraps an existing model.
func New(llm model.LLM) *Service {
	return &Service{llm: llm}
}

// NewFromConfig builds the model selected by AI_PROVIDER.
func NewFromConfig(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	switch cfg.GetAIProvider() {
	case config.AIProviderGemini:
		llm, err := gemini.NewModel(ctx, cfg.GetGeminiModel(), &genai.ClientConfig{
			APIKey:  cfg.GetGeminiAPIKey(),
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini model: %w", err)
		}
		return New(llm), nil
	case config.AIProviderMoonshot, "":
		return New(moonshot.NewModel(moonshot.Config{
			APIKey: cfg.GetMoonshotAPIKey(),
			Model:  cfg.GetMoonshotModel(),
		})), nil
	}
	return nil, fmt.Errorf("unknown ai provider %q", cfg.GetAIProvider())
}

// Complete sends the system prompt and history and returns the reply text.
func (s *Service) Complete(ctx context.Context, systemPrompt string, history []conversation.Turn) (string, error) {
	req := &model.LLMRequest{
		Model:    s.llm.Name(),
		Contents: toContents(history),
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			MaxOutputTokens:   maxOutputTokens,
		},
	}

	var out strings.Builder
	for resp, err := range s.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", err
		}
		if resp == nil || resp.Content == nil {
			continue
		}
		for _, part := range resp.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				out.WriteString(part.Text)
			}
		}
	}

	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

func toContents(history []conversation.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if turn.Role == conversation.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	return contents
}
