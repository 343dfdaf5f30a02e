// Package audio converts arbitrary audio and video into the canonical
// waveform the recognizer accepts: mono float32 samples at 16 kHz.
// Container decoding is delegated to ffmpeg; WAV parsing and resampling
// happen here so the recognizer needs no decoding dependency of its own.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// TargetSampleRate is the only sample rate the recognition backend accepts.
const TargetSampleRate = 16000

// ErrExtractionFailed is returned when the audio track cannot be pulled
// out of a video container.
var ErrExtractionFailed = errors.New("audio: extraction failed")

// Conversion is the outcome of EnsureWAV. When the external conversion
// tool fails, the original file is used unmodified and FallbackUsed is set
// so callers can observe the degraded path instead of it being silent.
type Conversion struct {
	Path         string
	FallbackUsed bool
	Reason       string
}

// ExtractAudio extracts the audio track of a video into a mono 16 kHz WAV
// file under destDir.
func ExtractAudio(ctx context.Context, videoPath, destDir string) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", fmt.Errorf("audio: video not found: %s: %w", videoPath, err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("audio: create dest dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	out := filepath.Join(destDir, base+".wav")

	if err := runFFmpeg(ctx, videoPath, out); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExtractionFailed, videoPath, err)
	}
	slog.Info("extracted audio", "video", videoPath, "audio", out)
	return out, nil
}

// EnsureWAV converts path to a mono 16 kHz WAV file next to the input.
// Already-WAV inputs pass through. A failed conversion does not fail the
// request: the original file is returned with FallbackUsed set.
func EnsureWAV(ctx context.Context, path string) Conversion {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return Conversion{Path: path}
	}

	out := strings.TrimSuffix(path, filepath.Ext(path)) + "_converted.wav"
	if err := runFFmpeg(ctx, path, out); err != nil {
		slog.Warn("conversion failed, using original file", "path", path, "err", err)
		return Conversion{Path: path, FallbackUsed: true, Reason: err.Error()}
	}
	return Conversion{Path: out}
}

// runFFmpeg invokes: ffmpeg -y -i in -ac 1 -ar 16000 -f wav out
func runFFmpeg(ctx context.Context, in, out string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-i", in,
		"-ac", "1", "-ar", "16000",
		"-f", "wav",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return nil
}
