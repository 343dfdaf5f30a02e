// Package tts wraps the YarnGPT speech-synthesis service. Requests are
// validated before dispatch; oversized text is rejected, never truncated.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	defaultBaseURL = "https://yarngpt.ai/api/v1/tts"

	// MaxTextLen is the backend's hard limit per request, in characters
	// (runes, not bytes).
	MaxTextLen = 2000

	// DefaultVoice is used when the caller does not pick one.
	DefaultVoice = "Idera"
)

// Validation errors.
var (
	ErrTextTooLong   = errors.New("tts: text exceeds 2000 characters")
	ErrUnknownVoice  = errors.New("tts: unknown voice")
	ErrInvalidFormat = errors.New("tts: invalid format (use: mp3, wav, opus, flac)")
)

// BackendError is a non-success response from the synthesis service. Body
// holds the first 300 bytes of the provider's error text.
type BackendError struct {
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("tts: yarngpt api: http %d: %s", e.Status, e.Body)
}

// Voices maps canonical voice names to their descriptions.
var Voices = map[string]string{
	"Idera":    "Melodic, gentle",
	"Emma":     "Authoritative, deep",
	"Zainab":   "Soothing, gentle",
	"Osagie":   "Smooth, calm",
	"Jude":     "Warm, confident",
	"Chinenye": "Engaging, warm",
	"Tayo":     "Upbeat, energetic",
	"Regina":   "Mature, warm",
	"Adaora":   "Warm, Engaging",
	"Umar":     "Calm, smooth",
	"Mary":     "Energetic, youthful",
	"Nonso":    "Bold, resonant",
	"Remi":     "Melodious, warm",
	"Adam":     "Deep, Clear",
}

var validFormats = map[string]bool{"mp3": true, "wav": true, "opus": true, "flac": true}

var titleCase = cases.Title(language.English)

// VoiceNames returns the canonical voice names, sorted.
func VoiceNames() []string {
	names := make([]string, 0, len(Voices))
	for name := range Voices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CanonicalVoice normalizes a voice name to its canonical form and
// validates membership. Matching is case-insensitive.
func CanonicalVoice(voice string) (string, error) {
	v := titleCase.String(strings.ToLower(strings.TrimSpace(voice)))
	if _, ok := Voices[v]; !ok {
		return "", fmt.Errorf("%w: %q (available: %s)", ErrUnknownVoice, voice, strings.Join(VoiceNames(), ", "))
	}
	return v, nil
}

// Client talks to the YarnGPT API with a static bearer credential.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a synthesis client. baseURL overrides the API endpoint
// when non-empty (used by tests).
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type synthesisRequest struct {
	Text           string `json:"text"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize generates speech for text and writes the raw audio bytes to
// outputPath, creating parent directories as needed. The written path is
// returned.
func (c *Client) Synthesize(ctx context.Context, text, voice, format, outputPath string) (string, error) {
	if n := utf8.RuneCountInString(text); n > MaxTextLen {
		return "", fmt.Errorf("%w (got %d)", ErrTextTooLong, n)
	}
	canonical, err := CanonicalVoice(voice)
	if err != nil {
		return "", err
	}
	if !validFormats[format] {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}

	payload, err := json.Marshal(synthesisRequest{
		Text:           text,
		Voice:          canonical,
		ResponseFormat: format,
	})
	if err != nil {
		return "", fmt.Errorf("tts: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("tts: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	slog.Info("synthesizing", "voice", canonical, "format", format, "chars", utf8.RuneCountInString(text))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("tts: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return "", &BackendError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("tts: read audio: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("tts: create output dir: %w", err)
	}
	if err := os.WriteFile(outputPath, audio, 0o644); err != nil {
		return "", fmt.Errorf("tts: write audio: %w", err)
	}

	slog.Info("audio saved", "path", outputPath, "bytes", len(audio))
	return outputPath, nil
}

// SynthesizeBatch synthesizes each text independently into destDir. The
// returned slice is index-aligned with texts; a failed item leaves an
// empty slot instead of aborting the batch.
func (c *Client) SynthesizeBatch(ctx context.Context, texts []string, destDir, voice, format string) []string {
	paths := make([]string, len(texts))
	for i, text := range texts {
		out := filepath.Join(destDir, fmt.Sprintf("tts_output_%03d.%s", i+1, format))
		path, err := c.Synthesize(ctx, text, voice, format, out)
		if err != nil {
			slog.Error("batch synthesis item failed", "index", i, "err", err)
			continue
		}
		paths[i] = path
	}
	return paths
}
