// Package collector normalizes heterogeneous media sources into local files
// ready for processing. It handles local audio/video files, directories of
// files, and remote video URLs (downloaded with yt-dlp).
package collector

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupportedFormat is returned for files whose extension is not on the
// audio/video allow-list.
var ErrUnsupportedFormat = errors.New("collector: unsupported file format")

var audioExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".flac": true, ".ogg": true,
	".m4a": true, ".aac": true, ".wma": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".webm": true, ".flv": true, ".wmv": true,
}

// IsAudio reports whether path has a supported audio extension.
func IsAudio(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsVideo reports whether path has a supported video extension.
func IsVideo(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsRemoteVideoURL reports whether s looks like a supported video-hosting URL.
func IsRemoteVideoURL(s string) bool {
	for _, domain := range []string{"youtube.com", "youtu.be", "youtube-nocookie.com"} {
		if strings.Contains(s, domain) {
			return true
		}
	}
	return false
}

// SupportedExtensions returns the full allow-list, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(audioExtensions)+len(videoExtensions))
	for e := range audioExtensions {
		exts = append(exts, e)
	}
	for e := range videoExtensions {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return exts
}

// EnsureDir creates dir (and parents) if absent.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// CollectLocalFile copies a local audio or video file into destDir,
// preserving its base name. The copy is byte-identical to the source.
func CollectLocalFile(path, destDir string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("collector: file not found: %s: %w", path, fs.ErrNotExist)
		}
		return "", fmt.Errorf("collector: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("collector: %s is a directory", path)
	}

	if !IsAudio(path) && !IsVideo(path) {
		return "", fmt.Errorf("%w: %s (supported: %s)",
			ErrUnsupportedFormat, filepath.Ext(path), strings.Join(SupportedExtensions(), " "))
	}

	if err := EnsureDir(destDir); err != nil {
		return "", fmt.Errorf("collector: create dest dir: %w", err)
	}
	dest := filepath.Join(destDir, filepath.Base(path))

	if err := copyFile(path, dest); err != nil {
		return "", fmt.Errorf("collector: copy %s: %w", path, err)
	}
	slog.Info("collected file", "src", path, "dest", dest)
	return dest, nil
}

// CollectFromURL downloads a remote video with yt-dlp. When audioOnly is
// set the audio track is extracted to WAV. The file is named after the
// source title by yt-dlp; the resulting path is read back from the tool.
func CollectFromURL(ctx context.Context, url, destDir string, audioOnly bool) (string, error) {
	if err := EnsureDir(destDir); err != nil {
		return "", fmt.Errorf("collector: create dest dir: %w", err)
	}

	args := []string{
		"--no-progress",
		"--print", "after_move:filepath",
		"-o", filepath.Join(destDir, "%(title)s.%(ext)s"),
	}
	if audioOnly {
		args = append(args, "-f", "bestaudio/best", "-x", "--audio-format", "wav")
	} else {
		args = append(args, "-f", "best[ext=mp4]/best")
	}
	args = append(args, url)

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("collector: yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	// yt-dlp prints one resolved path per downloaded file.
	var path string
	sc := bufio.NewScanner(&stdout)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			path = line
		}
	}
	if path == "" {
		return "", fmt.Errorf("collector: yt-dlp produced no output file for %s", url)
	}
	slog.Info("downloaded media", "url", url, "dest", path, "audioOnly", audioOnly)
	return path, nil
}

// CollectFromDirectory walks dir and collects every supported file into
// destDir. Individual failures are logged and skipped; the walk never
// aborts because of a single file.
func CollectFromDirectory(dir, destDir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("collector: not a directory: %s", dir)
	}

	var collected []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("skipping unreadable entry", "path", path, "err", err)
			return nil
		}
		if d.IsDir() || (!IsAudio(path) && !IsVideo(path)) {
			return nil
		}
		dest, err := CollectLocalFile(path, destDir)
		if err != nil {
			slog.Warn("skipping file", "path", path, "err", err)
			return nil
		}
		collected = append(collected, dest)
		return nil
	})
	if err != nil {
		return collected, fmt.Errorf("collector: walk %s: %w", dir, err)
	}
	slog.Info("directory collected", "dir", dir, "files", len(collected))
	return collected, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
