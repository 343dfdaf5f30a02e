// Package llm wraps conversational backends behind a uniform Ask contract.
// The concrete provider is chosen once at startup from configuration, not
// per call.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/monei-cc/voice-pipeline/config"
)

// SystemPrompt is prepended to every request. It is not stored in the
// session history.
const SystemPrompt = "You are Monei, a friendly and helpful AI voice assistant. " +
	"Keep responses concise (1-3 sentences) since they will be spoken aloud. " +
	"Be warm, natural, and conversational."

// ErrEmptyResponse is returned when a backend produces no usable text.
// A silent empty reply is never acceptable: downstream synthesis would
// have nothing to speak.
var ErrEmptyResponse = errors.New("llm: backend returned an empty response")

// Provider sends one user turn to a conversational backend. The user turn
// and the reply are both recorded on the session, and the session's
// sliding window is enforced after every turn.
type Provider interface {
	Ask(ctx context.Context, userText string, s *Session) (string, error)
}

// Streamer is implemented by providers that can surface incremental
// tokens while a reply is being generated.
type Streamer interface {
	AskStream(ctx context.Context, userText string, s *Session, onToken func(string)) (string, error)
}

// New constructs the provider selected by the configuration.
func New(cfg *config.Config) (Provider, error) {
	switch cfg.LLMProvider {
	case config.ProviderGroq:
		return NewGroq(cfg.GroqAPIKey, ""), nil
	case config.ProviderMonei:
		return NewMonei(cfg.MoneiAPIKey, ""), nil
	}
	return nil, fmt.Errorf("llm: unknown provider %q", cfg.LLMProvider)
}
