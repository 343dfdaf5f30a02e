package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// buildWAV assembles a WAV file with arbitrary fmt fields for decoder
// tests.
func buildWAV(t *testing.T, audioFormat, bits, channels uint16, rate uint32, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, audioFormat)
	binary.Write(&buf, binary.LittleEndian, channels)
	binary.Write(&buf, binary.LittleEndian, rate)
	binary.Write(&buf, binary.LittleEndian, rate*uint32(channels)*uint32(bits/8)) // byte rate
	binary.Write(&buf, binary.LittleEndian, channels*(bits/8))                    // block align
	binary.Write(&buf, binary.LittleEndian, bits)
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

func writeWAV(t *testing.T, raw []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func int16Data(vals ...int16) []byte {
	var buf bytes.Buffer
	for _, v := range vals {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

func TestLoadWaveform16Bit(t *testing.T) {
	raw := buildWAV(t, formatPCM, 16, 1, 16000, int16Data(0, 16384, -16384, 32767))
	samples, err := LoadWaveform(writeWAV(t, raw))
	if err != nil {
		t.Fatalf("LoadWaveform: %v", err)
	}

	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0}
	if len(samples) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(samples))
	}
	for i, w := range want {
		if math.Abs(float64(samples[i]-w)) > 1e-6 {
			t.Errorf("sample %d = %f, want %f", i, samples[i], w)
		}
	}
}

func TestLoadWaveform32BitInt(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(0))
	binary.Write(&buf, binary.LittleEndian, int32(1<<30)) // 0.5 after scaling
	binary.Write(&buf, binary.LittleEndian, int32(-1<<30))

	raw := buildWAV(t, formatPCM, 32, 1, 16000, buf.Bytes())
	samples, err := LoadWaveform(writeWAV(t, raw))
	if err != nil {
		t.Fatalf("LoadWaveform: %v", err)
	}

	want := []float32{0, 0.5, -0.5}
	for i, w := range want {
		if math.Abs(float64(samples[i]-w)) > 1e-6 {
			t.Errorf("sample %d = %f, want %f", i, samples[i], w)
		}
	}
}

func TestLoadWaveformFloat32(t *testing.T) {
	var buf bytes.Buffer
	for _, v := range []float32{0.25, -0.75, 1.0} {
		binary.Write(&buf, binary.LittleEndian, v)
	}

	raw := buildWAV(t, formatFloat, 32, 1, 16000, buf.Bytes())
	samples, err := LoadWaveform(writeWAV(t, raw))
	if err != nil {
		t.Fatalf("LoadWaveform: %v", err)
	}

	want := []float32{0.25, -0.75, 1.0}
	for i, w := range want {
		if samples[i] != w {
			t.Errorf("sample %d = %f, want %f", i, samples[i], w)
		}
	}
}

func TestLoadWaveformStereoAveraged(t *testing.T) {
	// Interleaved L/R frames: (0.5, -0.5) averages to 0, (0.5, 0.5) to 0.5.
	raw := buildWAV(t, formatPCM, 16, 2, 16000, int16Data(16384, -16384, 16384, 16384))
	samples, err := LoadWaveform(writeWAV(t, raw))
	if err != nil {
		t.Fatalf("LoadWaveform: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 mono frames, got %d", len(samples))
	}
	if math.Abs(float64(samples[0])) > 1e-6 {
		t.Errorf("frame 0 = %f, want 0", samples[0])
	}
	if math.Abs(float64(samples[1]-0.5)) > 1e-6 {
		t.Errorf("frame 1 = %f, want 0.5", samples[1])
	}
}

func TestLoadWaveformResamples(t *testing.T) {
	// One second of 8kHz audio should come back as one second at 16kHz.
	data := make([]int16, 8000)
	raw := buildWAV(t, formatPCM, 16, 1, 8000, int16Data(data...))
	samples, err := LoadWaveform(writeWAV(t, raw))
	if err != nil {
		t.Fatalf("LoadWaveform: %v", err)
	}
	if len(samples) != 16000 {
		t.Errorf("expected 16000 samples after resampling, got %d", len(samples))
	}
}

func TestLoadWaveformRejectsGarbage(t *testing.T) {
	if _, err := LoadWaveform(writeWAV(t, []byte("not a wav file at all"))); err == nil {
		t.Error("expected error for non-WAV input")
	}
}

func TestResample(t *testing.T) {
	in := []float32{0, 1, 0, -1}
	if got := Resample(in, 16000, 16000); len(got) != len(in) {
		t.Error("same-rate resample should be a no-op")
	}
	up := Resample(in, 8000, 16000)
	if len(up) != 8 {
		t.Errorf("expected 8 samples, got %d", len(up))
	}
	down := Resample(in, 16000, 8000)
	if len(down) != 2 {
		t.Errorf("expected 2 samples, got %d", len(down))
	}
}

func TestEncodeWAVRoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.25}
	raw := EncodeWAV(in, TargetSampleRate)
	samples, err := LoadWaveform(writeWAV(t, raw))
	if err != nil {
		t.Fatalf("LoadWaveform: %v", err)
	}
	if len(samples) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(samples))
	}
	for i := range in {
		if math.Abs(float64(samples[i]-in[i])) > 1e-3 {
			t.Errorf("sample %d = %f, want about %f", i, samples[i], in[i])
		}
	}
}
