package collector

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCollectLocalFile(t *testing.T) {
	srcDir := t.TempDir()
	destDir := filepath.Join(t.TempDir(), "collected")

	content := []byte("fake mp3 payload")
	src := filepath.Join(srcDir, "episode.mp3")
	writeFile(t, src, content)

	dest, err := CollectLocalFile(src, destDir)
	if err != nil {
		t.Fatalf("CollectLocalFile: %v", err)
	}
	if filepath.Base(dest) != "episode.mp3" {
		t.Errorf("expected name preserved, got %s", dest)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Error("destination content differs from source")
	}
}

func TestCollectLocalFileFormats(t *testing.T) {
	tests := []struct {
		ext     string
		wantErr bool
	}{
		{".wav", false},
		{".mp3", false},
		{".flac", false},
		{".m4a", false},
		{".mp4", false},
		{".mkv", false},
		{".webm", false},
		{".WAV", false}, // case-insensitive
		{".txt", true},
		{".pdf", true},
		{".exe", true},
		{"", true},
	}

	srcDir := t.TempDir()
	for _, tt := range tests {
		t.Run("ext"+tt.ext, func(t *testing.T) {
			src := filepath.Join(srcDir, "file"+tt.ext)
			writeFile(t, src, []byte("x"))

			_, err := CollectLocalFile(src, t.TempDir())
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("expected ErrUnsupportedFormat, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCollectLocalFileMissing(t *testing.T) {
	_, err := CollectLocalFile(filepath.Join(t.TempDir(), "nope.wav"), t.TempDir())
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestCollectFromDirectory(t *testing.T) {
	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "a.wav"), []byte("a"))
	writeFile(t, filepath.Join(srcDir, "notes.txt"), []byte("skip me"))
	writeFile(t, filepath.Join(srcDir, "nested", "b.mp4"), []byte("b"))

	destDir := t.TempDir()
	collected, err := CollectFromDirectory(srcDir, destDir)
	if err != nil {
		t.Fatalf("CollectFromDirectory: %v", err)
	}
	if len(collected) != 2 {
		t.Fatalf("expected 2 collected files, got %d: %v", len(collected), collected)
	}
	for _, p := range collected {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("collected path missing: %s", p)
		}
	}
}

func TestCollectFromDirectoryNotADir(t *testing.T) {
	if _, err := CollectFromDirectory(filepath.Join(t.TempDir(), "missing"), t.TempDir()); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestIsRemoteVideoURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=abc123", true},
		{"https://youtu.be/abc123", true},
		{"https://www.youtube-nocookie.com/embed/abc", true},
		{"https://example.com/video.mp4", false},
		{"/local/path/audio.wav", false},
	}
	for _, tt := range tests {
		if got := IsRemoteVideoURL(tt.url); got != tt.want {
			t.Errorf("IsRemoteVideoURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
