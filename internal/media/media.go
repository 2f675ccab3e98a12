// Package media drives ffmpeg and ffprobe for segment recording,
// source probing and frame extraction. Every invocation runs to
// completion or is killed with its context, so no process outlives
// the call that started it.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	// SegmentMimeType is the encoding produced by Record.
	SegmentMimeType = "video/mp4"
	// FrameMimeType is the encoding produced by ExtractFrame.
	FrameMimeType = "image/png"

	waitDelay = 2 * time.Second
)

var (
	// ErrUnavailable is returned when the ffmpeg or ffprobe binary cannot be executed.
	ErrUnavailable = errors.New("media tooling unavailable")
	// ErrNotReady is returned when a source has no readable video stream.
	ErrNotReady = errors.New("media source not ready")
	// ErrNoFrame is returned when no frame exists at the requested offset.
	ErrNoFrame = errors.New("no frame at offset")
	// ErrEmptyOutput is returned when a recording produced no bytes.
	ErrEmptyOutput = errors.New("recording produced no output")
)

// FFmpeg runs ffmpeg and ffprobe binaries.
type FFmpeg struct {
	Path      string
	ProbePath string
}

// New returns an FFmpeg using path for ffmpeg. ffprobe is resolved as a
// sibling of path.
func New(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{
		Path:      path,
		ProbePath: probePath(path),
	}
}

// Available reports whether ffmpeg can be executed.
func (f *FFmpeg) Available(ctx context.Context) error {
	_, err := f.run(ctx, f.Path, "-hide_banner", "-version")
	return err
}

// Probe verifies that source exposes a video stream.
func (f *FFmpeg) Probe(ctx context.Context, source string) error {
	out, err := f.run(ctx, f.ProbePath, probeArgs(source)...)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	if !strings.Contains(string(out), "video") {
		return fmt.Errorf("%w: no video stream in %s", ErrNotReady, source)
	}
	return nil
}

// Record captures d of video from source as fragmented MP4. File sources
// are read at native rate and looped so a capture spans d of wall-clock
// time like a live feed.
func (f *FFmpeg) Record(ctx context.Context, source string, d time.Duration) ([]byte, error) {
	if d <= 0 {
		return nil, fmt.Errorf("record duration must be positive, got %s", d)
	}

	ctx, cancel := context.WithTimeout(ctx, d+30*time.Second)
	defer cancel()

	out, err := f.run(ctx, f.Path, recordArgs(source, d)...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptyOutput
	}
	return out, nil
}

// ExtractFrame returns the PNG-encoded frame at offset within the video file at path.
func (f *FFmpeg) ExtractFrame(ctx context.Context, path string, offset time.Duration) ([]byte, error) {
	out, err := f.run(ctx, f.Path, frameArgs(path, offset)...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFrame, offset)
	}
	return out, nil
}

func (f *FFmpeg) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w (stderr: %s)", bin, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func recordArgs(source string, d time.Duration) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}

	switch {
	case strings.HasPrefix(source, "rtsp://"):
		args = append(args, "-rtsp_transport", "tcp")
	case isFile(source):
		args = append(args, "-re", "-stream_loop", "-1")
	}

	return append(args,
		"-i", source,
		"-t", seconds(d),
		"-an",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4",
		"-",
	)
}

func frameArgs(path string, offset time.Duration) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", seconds(offset),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}
}

func probeArgs(source string) []string {
	args := []string{"-v", "error"}
	if strings.HasPrefix(source, "rtsp://") {
		args = append(args, "-rtsp_transport", "tcp")
	}
	return append(args,
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0",
		source,
	)
}

func isFile(source string) bool {
	return !strings.Contains(source, "://") || strings.HasPrefix(source, "file://")
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func probePath(ffmpeg string) string {
	if i := strings.LastIndex(ffmpeg, "ffmpeg"); i >= 0 {
		return ffmpeg[:i] + "ffprobe" + ffmpeg[i+len("ffmpeg"):]
	}
	return "ffprobe"
}
