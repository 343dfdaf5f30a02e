package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const moneiBaseURL = "https://api.monei.cc/api/v1/agent/conversations/stream"

// Monei asks the Monei conversational agent. The backend replies with a
// server-sent event stream of incremental tokens followed by an optional
// complete event carrying the final text.
type Monei struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewMonei creates a Monei provider. baseURL overrides the API endpoint
// when non-empty (used by tests).
func NewMonei(apiKey, baseURL string) *Monei {
	if baseURL == "" {
		baseURL = moneiBaseURL
	}
	return &Monei{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Ask appends the user turn, streams the reply, and records it as an
// assistant turn.
func (m *Monei) Ask(ctx context.Context, userText string, s *Session) (string, error) {
	return m.AskStream(ctx, userText, s, nil)
}

// AskStream is Ask with an optional per-token callback, invoked for each
// incremental token as it arrives.
func (m *Monei) AskStream(ctx context.Context, userText string, s *Session, onToken func(string)) (string, error) {
	s.Append("user", userText)

	payload, err := json.Marshal(map[string]string{"message": userText})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("X-API-KEY", m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: monei request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return "", fmt.Errorf("llm: monei api: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	reply, err := decodeEventStream(resp.Body, onToken)
	if err != nil {
		return "", err
	}

	s.Append("assistant", reply)
	slog.Info("monei reply", "chars", len(reply))
	return reply, nil
}

// streamEvent is one SSE payload from the agent.
type streamEvent struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// decodeEventStream reads "data: {...}" lines until the stream ends or a
// complete event arrives. Token events append to the running buffer; a
// complete event replaces the buffer wholesale and stops the read. A
// stream that ends without producing any text is a hard error.
func decodeEventStream(r io.Reader, onToken func(string)) (string, error) {
	var buf strings.Builder
	var final string
	var haveFinal bool

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(line[len("data: "):]), &ev); err != nil {
			return "", fmt.Errorf("llm: decode stream event: %w", err)
		}
		switch ev.Event {
		case "complete":
			final = strings.TrimSpace(ev.Data)
			haveFinal = true
		case "token":
			buf.WriteString(ev.Data)
			if onToken != nil {
				onToken(ev.Data)
			}
		}
		if haveFinal {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("llm: read stream: %w", err)
	}

	reply := buf.String()
	if haveFinal {
		reply = final
	}
	if reply == "" {
		return "", ErrEmptyResponse
	}
	return reply, nil
}
