// Package video wraps ffmpeg and ffprobe.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds frame extraction and transcoding.
	DefaultTimeout = 200 * time.Second
	// DefaultProbeTimeout bounds ffprobe calls.
	DefaultProbeTimeout = 30 * time.Second

	// CodecH264 is the codec every browser plays.
	CodecH264 = "h264"

	convertedName = "converted.mp4"
)

// ErrNoOutput is returned when a tool exits cleanly without writing its output.
var ErrNoOutput = errors.New("tool produced no output")

// Engine runs ffmpeg/ffprobe binaries.
type Engine struct {
	ffmpegPath   string
	ffprobePath  string
	timeout      time.Duration
	probeTimeout time.Duration
	logger       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithBinaries overrides the ffmpeg and ffprobe executables.
func WithBinaries(ffmpeg, ffprobe string) Option {
	return func(e *Engine) {
		if ffmpeg != "" {
			e.ffmpegPath = ffmpeg
		}
		if ffprobe != "" {
			e.ffprobePath = ffprobe
		}
	}
}

// WithTimeouts overrides tool timeouts. Zero keeps the default.
func WithTimeouts(tool, probe time.Duration) Option {
	return func(e *Engine) {
		if tool > 0 {
			e.timeout = tool
		}
		if probe > 0 {
			e.probeTimeout = probe
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		ffmpegPath:   "ffmpeg",
		ffprobePath:  "ffprobe",
		timeout:      DefaultTimeout,
		probeTimeout: DefaultProbeTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractFrame writes the frame at atSeconds to a PNG next to the source.
func (e *Engine) ExtractFrame(ctx context.Context, path string, atSeconds float64) (string, error) {
	outPath := filepath.Join(filepath.Dir(path), "frame1.png")
	args := []string{"-y"}
	if atSeconds > 0 {
		args = append(args, "-ss", strconv.FormatFloat(atSeconds, 'f', 3, 64))
	}
	args = append(args, "-i", path, "-vframes", "1", outPath)

	if _, err := e.run(ctx, e.timeout, e.ffmpegPath, args...); err != nil {
		return "", fmt.Errorf("extract frame: %w", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("extract frame: %w", ErrNoOutput)
	}
	return outPath, nil
}

// ProbeCodec returns the codec name of the first video stream.
func (e *Engine) ProbeCodec(ctx context.Context, path string) (string, error) {
	out, err := e.run(ctx, e.probeTimeout, e.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return "", fmt.Errorf("probe codec: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ProbeDuration returns the container duration in seconds.
func (e *Engine) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := e.run(ctx, e.probeTimeout, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(out), err)
	}
	return d, nil
}

// Transcode re-encodes the source with the given codec into the source's
// directory and returns the output path.
func (e *Engine) Transcode(ctx context.Context, path, codec string) (string, error) {
	encoder := codec
	if codec == CodecH264 {
		encoder = "libx264"
	}
	outPath := filepath.Join(filepath.Dir(path), convertedName)

	if _, err := e.run(ctx, e.timeout, e.ffmpegPath,
		"-y", "-i", path, "-vcodec", encoder, outPath,
	); err != nil {
		return "", fmt.Errorf("transcode: %w", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("transcode: %w", ErrNoOutput)
	}
	return outPath, nil
}

func (e *Engine) run(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	e.logger.Debug("running command", zap.String("cmd", name), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return "", fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
