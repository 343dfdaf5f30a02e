// Package stt wraps speech-to-text backends behind a uniform contract.
// Backends take the canonical waveform (mono float32 at 16 kHz) and return
// a transcript with the detected language and timestamped segments.
package stt

import "context"

// Segment is a timestamped portion of the transcript. Times are seconds
// from the start of the audio. Ordering and non-overlap are guaranteed by
// the backend and not re-validated here.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the structured result of one transcription.
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Result is one entry of a batch transcription. Exactly one of Transcript
// or Err is populated; a failed item records its error instead of aborting
// the batch.
type Result struct {
	AudioPath  string      `json:"audio_path"`
	Transcript *Transcript `json:"transcript,omitempty"`
	Err        string      `json:"error,omitempty"`
}

// Transcriber converts a waveform to text. language is a hint ("" for
// auto-detect); the language actually used is always set on the result.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, language string) (*Transcript, error)
}
