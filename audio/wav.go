package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

const (
	formatPCM   = 1
	formatFloat = 3
)

// LoadWaveform reads a WAV file into the canonical waveform: mono float32
// samples in [-1, 1] at exactly 16 kHz. 16-bit samples are scaled by
// 1/32768, 32-bit integer samples by 1/2147483648; multi-channel audio is
// averaged to mono, and other sample rates are resampled.
func LoadWaveform(path string) ([]float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("audio: read %s: %w", path, err)
	}

	format, channels, rate, data, err := parseWAV(raw)
	if err != nil {
		return nil, fmt.Errorf("audio: parse %s: %w", path, err)
	}

	samples, err := decodeSamples(format, data)
	if err != nil {
		return nil, fmt.Errorf("audio: decode %s: %w", path, err)
	}

	if channels > 1 {
		samples = mixToMono(samples, channels)
	}
	if rate != TargetSampleRate {
		samples = Resample(samples, rate, TargetSampleRate)
	}
	return samples, nil
}

// parseWAV walks the RIFF chunks and returns the fmt fields plus the raw
// data chunk. Format is a composite of audio format and bits per sample.
func parseWAV(raw []byte) (format sampleFormat, channels, rate int, data []byte, err error) {
	if len(raw) < 12 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return 0, 0, 0, nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	var haveFmt bool
	var audioFormat, bits uint16
	for off := 12; off+8 <= len(raw); {
		id := string(raw[off : off+4])
		size := int(binary.LittleEndian.Uint32(raw[off+4 : off+8]))
		body := off + 8
		if body+size > len(raw) {
			size = len(raw) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return 0, 0, 0, nil, fmt.Errorf("short fmt chunk")
			}
			audioFormat = binary.LittleEndian.Uint16(raw[body : body+2])
			channels = int(binary.LittleEndian.Uint16(raw[body+2 : body+4]))
			rate = int(binary.LittleEndian.Uint32(raw[body+4 : body+8]))
			bits = binary.LittleEndian.Uint16(raw[body+14 : body+16])
			haveFmt = true
		case "data":
			data = raw[body : body+size]
		}
		// chunks are word aligned
		off = body + size + size%2
	}

	if !haveFmt || data == nil {
		return 0, 0, 0, nil, fmt.Errorf("missing fmt or data chunk")
	}
	if channels < 1 || rate <= 0 {
		return 0, 0, 0, nil, fmt.Errorf("invalid fmt: channels=%d rate=%d", channels, rate)
	}

	switch {
	case audioFormat == formatPCM && bits == 16:
		format = formatInt16
	case audioFormat == formatPCM && bits == 32:
		format = formatInt32
	case audioFormat == formatFloat && bits == 32:
		format = formatFloat32
	default:
		return 0, 0, 0, nil, fmt.Errorf("unsupported sample format: format=%d bits=%d", audioFormat, bits)
	}
	return format, channels, rate, data, nil
}

type sampleFormat int

const (
	formatInt16 sampleFormat = iota + 1
	formatInt32
	formatFloat32
)

func decodeSamples(format sampleFormat, data []byte) ([]float32, error) {
	switch format {
	case formatInt16:
		n := len(data) / 2
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
			out[i] = float32(v) / 32768.0
		}
		return out, nil
	case formatInt32:
		n := len(data) / 4
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			v := int32(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
			out[i] = float32(float64(v) / 2147483648.0)
		}
		return out, nil
	case formatFloat32:
		n := len(data) / 4
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown sample format %d", format)
}

func mixToMono(samples []float32, channels int) []float32 {
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// Resample converts samples from srcRate to dstRate by linear
// interpolation.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	n := int(float64(len(samples)) * float64(dstRate) / float64(srcRate))
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j] + (samples[j+1]-samples[j])*frac
	}
	return out
}

// EncodeWAV renders mono float32 samples as a 16-bit PCM WAV file.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	dataSize := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))

	buf.WriteString("RIFF")
	writeUint32LE(buf, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	writeUint32LE(buf, 16)
	writeUint16LE(buf, formatPCM)
	writeUint16LE(buf, 1) // mono
	writeUint32LE(buf, uint32(sampleRate))
	writeUint32LE(buf, uint32(sampleRate*2)) // byte rate
	writeUint16LE(buf, 2)                    // block align
	writeUint16LE(buf, 16)                   // bits per sample

	buf.WriteString("data")
	writeUint32LE(buf, uint32(dataSize))

	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		writeInt16LE(buf, int16(s*32767))
	}
	return buf.Bytes()
}

func writeUint16LE(w *bytes.Buffer, v uint16) {
	w.WriteByte(byte(v))
	w.WriteByte(byte(v >> 8))
}

func writeUint32LE(w *bytes.Buffer, v uint32) {
	w.WriteByte(byte(v))
	w.WriteByte(byte(v >> 8))
	w.WriteByte(byte(v >> 16))
	w.WriteByte(byte(v >> 24))
}

func writeInt16LE(w *bytes.Buffer, v int16) {
	writeUint16LE(w, uint16(v))
}
