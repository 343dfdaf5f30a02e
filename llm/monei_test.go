package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeEventStream(t *testing.T) {
	tests := []struct {
		name    string
		stream  string
		want    string
		wantErr error
	}{
		{
			name: "complete replaces tokens",
			stream: "data: {\"event\":\"token\",\"data\":\"Hel\"}\n" +
				"data: {\"event\":\"token\",\"data\":\"lo\"}\n" +
				"data: {\"event\":\"complete\",\"data\":\"Hello!\"}\n",
			want: "Hello!",
		},
		{
			name: "tokens only concatenate",
			stream: "data: {\"event\":\"token\",\"data\":\"Hel\"}\n" +
				"data: {\"event\":\"token\",\"data\":\"lo\"}\n",
			want: "Hello",
		},
		{
			name:    "empty stream",
			stream:  "",
			wantErr: ErrEmptyResponse,
		},
		{
			name:    "complete with empty payload",
			stream:  "data: {\"event\":\"complete\",\"data\":\"\"}\n",
			wantErr: ErrEmptyResponse,
		},
		{
			name: "non-data lines ignored",
			stream: ": keepalive\n" +
				"\n" +
				"data: {\"event\":\"token\",\"data\":\"ok\"}\n",
			want: "ok",
		},
		{
			name: "events after complete are not read",
			stream: "data: {\"event\":\"complete\",\"data\":\"done\"}\n" +
				"data: {\"event\":\"token\",\"data\":\"late\"}\n",
			want: "done",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeEventStream(strings.NewReader(tt.stream), nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeEventStream: %v", err)
			}
			if got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMoneiAskStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-KEY"); got != "test-key" {
			t.Errorf("X-API-KEY = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"event\":\"token\",\"data\":\"Hi \"}\n")
		fmt.Fprint(w, "data: {\"event\":\"token\",\"data\":\"there\"}\n")
		fmt.Fprint(w, "data: {\"event\":\"complete\",\"data\":\"Hi there!\"}\n")
	}))
	defer srv.Close()

	m := NewMonei("test-key", srv.URL)
	s := NewSession()

	var tokens []string
	reply, err := m.AskStream(context.Background(), "hello", s, func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatalf("AskStream: %v", err)
	}
	if reply != "Hi there!" {
		t.Errorf("reply = %q", reply)
	}
	if len(tokens) != 2 {
		t.Errorf("expected 2 token callbacks, got %d", len(tokens))
	}

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected user+assistant turns, got %d", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "hello" {
		t.Errorf("turn 0 = %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "Hi there!" {
		t.Errorf("turn 1 = %+v", msgs[1])
	}
}

func TestMoneiAskHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	m := NewMonei("test-key", srv.URL)
	_, err := m.Ask(context.Background(), "hello", NewSession())
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "402") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("error should carry status and body: %v", err)
	}
}

func TestMoneiEmptyStreamIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
	}))
	defer srv.Close()

	m := NewMonei("test-key", srv.URL)
	s := NewSession()
	_, err := m.Ask(context.Background(), "hello", s)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	// The failed turn still recorded the user message but no assistant
	// reply.
	if got := s.Len(); got != 1 {
		t.Errorf("session length = %d, want 1", got)
	}
}
