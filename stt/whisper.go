package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/monei-cc/voice-pipeline/audio"
)

// ModelSizes are the accepted whisper model tiers, fastest first.
var ModelSizes = []string{"tiny", "base", "small", "medium", "large"}

// ErrBinaryNotFound is returned when no whisper.cpp executable could be
// located.
var ErrBinaryNotFound = errors.New("stt: whisper binary not found (install whisper.cpp)")

// Whisper transcribes audio with a local whisper.cpp model invoked as a
// subprocess with JSON output.
type Whisper struct {
	modelSize string
	modelPath string
	binPath   string
}

// NewWhisper creates a Whisper backend for the given model size. modelDir
// is where the ggml model files live; when empty, ~/.voice-pipeline/models
// is used. The binary is looked up once here, not per call.
func NewWhisper(modelSize, modelDir string) (*Whisper, error) {
	if !validModelSize(modelSize) {
		return nil, fmt.Errorf("stt: invalid model size %q (choose from: %s)",
			modelSize, strings.Join(ModelSizes, ", "))
	}
	if modelDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("stt: get home dir: %w", err)
		}
		modelDir = filepath.Join(home, ".voice-pipeline", "models")
	}

	bin := findWhisperBinary()
	if bin == "" {
		return nil, ErrBinaryNotFound
	}

	return &Whisper{
		modelSize: modelSize,
		modelPath: filepath.Join(modelDir, fmt.Sprintf("ggml-%s.bin", modelSize)),
		binPath:   bin,
	}, nil
}

// ModelSize returns the configured tier.
func (w *Whisper) ModelSize() string { return w.modelSize }

// Transcribe writes the waveform to a temp WAV and runs whisper.cpp over
// it. language is passed through as a hint; the detected language is taken
// from the model output.
func (w *Whisper) Transcribe(ctx context.Context, samples []float32, language string) (*Transcript, error) {
	base := filepath.Join(os.TempDir(), fmt.Sprintf("whisper_%d", time.Now().UnixNano()))
	wavPath := base + ".wav"
	jsonPath := base + ".json"
	if err := os.WriteFile(wavPath, audio.EncodeWAV(samples, audio.TargetSampleRate), 0o644); err != nil {
		return nil, fmt.Errorf("stt: write temp audio: %w", err)
	}
	defer os.Remove(wavPath)
	defer os.Remove(jsonPath)

	// -oj writes the JSON to a sidecar file next to -of, not to stdout.
	args := []string{
		"-m", w.modelPath,
		"-f", wavPath,
		"-of", base,
		"-oj", "--no-prints",
	}
	if language != "" {
		args = append(args, "-l", language)
	}

	slog.Info("transcribing", "model", w.modelSize, "samples", len(samples), "language", language)

	cmd := exec.CommandContext(ctx, w.binPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("stt: whisper failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	tr, err := readWhisperResult(jsonPath, stdout.Bytes())
	if err != nil {
		return nil, err
	}
	if tr.Language == "" {
		tr.Language = language
	}
	slog.Info("transcribed", "language", tr.Language, "chars", len(tr.Text), "segments", len(tr.Segments))
	return tr, nil
}

// whisperOutput mirrors the JSON emitted by whisper.cpp with -oj.
// Offsets are milliseconds.
type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Text    string `json:"text"`
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
	} `json:"transcription"`
}

// readWhisperResult loads the sidecar JSON file. Builds that ignore -of
// and print the JSON on stdout instead are handled by falling back to the
// captured output.
func readWhisperResult(jsonPath string, stdout []byte) (*Transcript, error) {
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		raw = stdout
	}
	return parseWhisperOutput(raw)
}

func parseWhisperOutput(raw []byte) (*Transcript, error) {
	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("stt: parse whisper output: %w", err)
	}

	tr := &Transcript{
		Language: out.Result.Language,
		Segments: make([]Segment, 0, len(out.Transcription)),
	}
	var text strings.Builder
	for _, seg := range out.Transcription {
		t := strings.TrimSpace(seg.Text)
		if t == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(t)
		tr.Segments = append(tr.Segments, Segment{
			Start: float64(seg.Offsets.From) / 1000.0,
			End:   float64(seg.Offsets.To) / 1000.0,
			Text:  t,
		})
	}
	tr.Text = text.String()
	return tr, nil
}

func validModelSize(size string) bool {
	for _, s := range ModelSizes {
		if s == size {
			return true
		}
	}
	return false
}

// findWhisperBinary checks PATH and common install locations.
// whisper-cli is the Homebrew name.
func findWhisperBinary() string {
	names := []string{"whisper-cli", "whisper-cpp", "whisper", "main"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	home, _ := os.UserHomeDir()
	locations := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		filepath.Join(home, ".local", "bin"),
		filepath.Join(home, "whisper.cpp"),
	}
	for _, loc := range locations {
		for _, name := range names {
			path := filepath.Join(loc, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
