// Package pipeline sequences collection, normalization, transcription and
// synthesis for one pipeline instance. Each request runs the stages
// synchronously; there is no internal parallelism.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/monei-cc/voice-pipeline/audio"
	"github.com/monei-cc/voice-pipeline/collector"
	"github.com/monei-cc/voice-pipeline/stt"
)

// Subdirectories created under the output root at construction.
const (
	collectSubdir       = "collected"
	audioSubdir         = "extracted_audio"
	transcriptionSubdir = "transcriptions"
	ttsSubdir           = "tts_output"
)

// transcriptionsFile is where TranscribeAll persists its results.
const transcriptionsFile = "transcriptions.json"

// Synthesizer is the slice of the speech-synthesis client the pipeline
// needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, format, outputPath string) (string, error)
	SynthesizeBatch(ctx context.Context, texts []string, destDir, voice, format string) []string
}

// Pipeline composes the stage components over a fixed directory layout.
// Accumulators live in memory for the lifetime of the instance and are not
// persisted across restarts.
type Pipeline struct {
	outputDir        string
	collectDir       string
	audioDir         string
	transcriptionDir string
	ttsDir           string

	transcriber stt.Transcriber
	synth       Synthesizer

	collected      []string
	transcriptions []stt.Result
}

// Summary reports the pipeline's in-memory state.
type Summary struct {
	OutputDir      string   `json:"output_dir"`
	CollectedFiles int      `json:"collected_files"`
	Transcriptions int      `json:"transcriptions"`
	Files          []string `json:"files"`
}

// New creates a pipeline rooted at outputDir, eagerly creating the
// subdirectory layout.
func New(outputDir string, transcriber stt.Transcriber, synth Synthesizer) (*Pipeline, error) {
	p := &Pipeline{
		outputDir:        outputDir,
		collectDir:       filepath.Join(outputDir, collectSubdir),
		audioDir:         filepath.Join(outputDir, audioSubdir),
		transcriptionDir: filepath.Join(outputDir, transcriptionSubdir),
		ttsDir:           filepath.Join(outputDir, ttsSubdir),
		transcriber:      transcriber,
		synth:            synth,
	}
	for _, dir := range []string{p.collectDir, p.audioDir, p.transcriptionDir, p.ttsDir} {
		if err := collector.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("pipeline: create %s: %w", dir, err)
		}
	}
	slog.Info("pipeline initialized", "output", outputDir)
	return p, nil
}

// TTSDir returns the directory synthesized audio is written to.
func (p *Pipeline) TTSDir() string { return p.ttsDir }

// Collect pulls one source (local file or remote video URL) into the
// collected directory and records it.
func (p *Pipeline) Collect(ctx context.Context, source string, audioOnly bool) (string, error) {
	var path string
	var err error
	switch {
	case collector.IsRemoteVideoURL(source):
		path, err = collector.CollectFromURL(ctx, source, p.collectDir, audioOnly)
	default:
		if _, statErr := os.Stat(source); statErr != nil {
			return "", fmt.Errorf("pipeline: invalid source %q (not a file or supported URL)", source)
		}
		path, err = collector.CollectLocalFile(source, p.collectDir)
	}
	if err != nil {
		return "", err
	}
	p.collected = append(p.collected, path)
	return path, nil
}

// CollectDirectory collects every supported file under dir.
func (p *Pipeline) CollectDirectory(dir string) ([]string, error) {
	files, err := collector.CollectFromDirectory(dir, p.collectDir)
	if err != nil {
		return nil, err
	}
	p.collected = append(p.collected, files...)
	return files, nil
}

// Transcribe runs one file through normalization and the recognition
// backend, recording the result.
func (p *Pipeline) Transcribe(ctx context.Context, path, language string) (*stt.Transcript, error) {
	tr, err := p.processFile(ctx, path, language)
	if err != nil {
		return nil, err
	}
	p.transcriptions = append(p.transcriptions, stt.Result{AudioPath: path, Transcript: tr})
	return tr, nil
}

// TranscribeFile transcribes one file without recording it in the
// accumulators. Serving paths use this for per-request work.
func (p *Pipeline) TranscribeFile(ctx context.Context, path, language string) (*stt.Transcript, error) {
	return p.processFile(ctx, path, language)
}

// TranscribeAll transcribes every collected file. A failed item records
// its error alongside the successes instead of aborting the batch, and the
// full result list is persisted to disk afterwards regardless of item
// errors.
func (p *Pipeline) TranscribeAll(ctx context.Context, language string) ([]stt.Result, error) {
	if len(p.collected) == 0 {
		slog.Warn("no files collected yet")
		return nil, nil
	}

	results := make([]stt.Result, 0, len(p.collected))
	for _, path := range p.collected {
		tr, err := p.processFile(ctx, path, language)
		if err != nil {
			slog.Error("transcription failed", "path", path, "err", err)
			results = append(results, stt.Result{AudioPath: path, Err: err.Error()})
			continue
		}
		results = append(results, stt.Result{AudioPath: path, Transcript: tr})
	}
	p.transcriptions = append(p.transcriptions, results...)

	if err := p.saveTranscriptions(results); err != nil {
		return results, err
	}
	return results, nil
}

// processFile normalizes path into the canonical waveform and transcribes
// it. Videos have their audio track extracted first.
func (p *Pipeline) processFile(ctx context.Context, path, language string) (*stt.Transcript, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("pipeline: audio file not found: %s: %w", path, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("pipeline: stat %s: %w", path, err)
	}

	audioPath := path
	switch {
	case collector.IsVideo(path):
		extracted, err := audio.ExtractAudio(ctx, path, p.audioDir)
		if err != nil {
			return nil, err
		}
		audioPath = extracted
	case collector.IsAudio(path):
	default:
		return nil, fmt.Errorf("%w: %s", collector.ErrUnsupportedFormat, path)
	}

	conv := audio.EnsureWAV(ctx, audioPath)
	if conv.FallbackUsed {
		slog.Warn("transcribing unconverted audio", "path", conv.Path, "reason", conv.Reason)
	}

	samples, err := audio.LoadWaveform(conv.Path)
	if err != nil {
		return nil, err
	}
	return p.transcriber.Transcribe(ctx, samples, language)
}

// Speak synthesizes text into the tts output directory. When filename is
// empty one is generated from the count of existing files in that format.
func (p *Pipeline) Speak(ctx context.Context, text, voice, format, filename string) (string, error) {
	if filename == "" {
		filename = fmt.Sprintf("speech_%03d.%s", p.countTTSFiles(format)+1, format)
	}
	return p.synth.Synthesize(ctx, text, voice, format, filepath.Join(p.ttsDir, filename))
}

// SpeakTranscriptions re-synthesizes every successful transcription. The
// returned slice is index-aligned with the synthesized texts; failed items
// leave empty slots.
func (p *Pipeline) SpeakTranscriptions(ctx context.Context, voice, format string) []string {
	var texts []string
	for _, r := range p.transcriptions {
		if r.Transcript != nil && r.Transcript.Text != "" {
			texts = append(texts, r.Transcript.Text)
		}
	}
	if len(texts) == 0 {
		slog.Warn("no transcriptions available to synthesize")
		return nil
	}
	return p.synth.SynthesizeBatch(ctx, texts, p.ttsDir, voice, format)
}

// Summary reports current accumulator state.
func (p *Pipeline) Summary() Summary {
	files := make([]string, len(p.collected))
	copy(files, p.collected)
	return Summary{
		OutputDir:      p.outputDir,
		CollectedFiles: len(p.collected),
		Transcriptions: len(p.transcriptions),
		Files:          files,
	}
}

// Sweep deletes per-request artifacts older than maxAge from the
// synthesized and extracted audio directories. Best effort: called
// opportunistically, never from a background goroutine.
func (p *Pipeline) Sweep(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	for _, dir := range []string{p.ttsDir, p.audioDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				_ = os.Remove(filepath.Join(dir, e.Name()))
			}
		}
	}
}

func (p *Pipeline) saveTranscriptions(results []stt.Result) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline: marshal transcriptions: %w", err)
	}
	path := filepath.Join(p.transcriptionDir, transcriptionsFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("pipeline: save transcriptions: %w", err)
	}
	slog.Info("transcriptions saved", "path", path, "count", len(results))
	return nil
}

func (p *Pipeline) countTTSFiles(format string) int {
	entries, err := os.ReadDir(p.ttsDir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "."+format) {
			n++
		}
	}
	return n
}
