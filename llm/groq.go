package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1"
	groqModel   = "llama-3.3-70b-versatile"
)

// Groq asks Groq Cloud through its OpenAI-compatible chat completions API.
// One synchronous request, one complete reply.
type Groq struct {
	client *openai.Client
}

// NewGroq creates a Groq provider. baseURL overrides the API endpoint when
// non-empty (used by tests).
func NewGroq(apiKey, baseURL string) *Groq {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Groq{client: openai.NewClientWithConfig(cfg)}
}

// Ask appends the user turn, sends the windowed history with the system
// prompt prepended, and records the reply as an assistant turn.
func (g *Groq) Ask(ctx context.Context, userText string, s *Session) (string, error) {
	s.Append("user", userText)

	history := s.Messages()
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: SystemPrompt,
	})
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       groqModel,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   256,
	})
	if err != nil {
		return "", fmt.Errorf("llm: groq request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyResponse
	}

	s.Append("assistant", reply)
	slog.Info("groq reply", "chars", len(reply))
	return reply, nil
}
