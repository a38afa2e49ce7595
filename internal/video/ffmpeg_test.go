package video

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTool writes an executable shell script standing in for ffmpeg/ffprobe.
func fakeTool(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

// touchLast creates the file named by the last argument.
const touchLast = `for last; do :; done; touch "$last"`

func TestExtractFrame(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := fakeTool(t, dir, "ffmpeg", touchLast)
	src := filepath.Join(dir, "source.mov")
	require.NoError(t, os.WriteFile(src, []byte("video"), 0o644))

	out, err := New(WithBinaries(ffmpeg, "")).ExtractFrame(context.Background(), src, 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "frame1.png"), out)
	assert.FileExists(t, out)
}

func TestExtractFrameNoOutput(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := fakeTool(t, dir, "ffmpeg", "exit 0")

	_, err := New(WithBinaries(ffmpeg, "")).ExtractFrame(context.Background(), filepath.Join(dir, "source.mov"), 0)
	assert.ErrorIs(t, err, ErrNoOutput)
}

func TestExtractFrameToolFailure(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := fakeTool(t, dir, "ffmpeg", "echo 'Invalid data found' >&2; exit 1")

	_, err := New(WithBinaries(ffmpeg, "")).ExtractFrame(context.Background(), filepath.Join(dir, "source.mov"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestProbeCodecAndDuration(t *testing.T) {
	dir := t.TempDir()
	ffprobe := fakeTool(t, dir, "ffprobe", `case "$*" in *format=duration*) echo "12.480000";; *) echo "hevc";; esac`)
	e := New(WithBinaries("", ffprobe))

	codec, err := e.ProbeCodec(context.Background(), "in.mp4")
	require.NoError(t, err)
	assert.Equal(t, "hevc", codec)

	d, err := e.ProbeDuration(context.Background(), "in.mp4")
	require.NoError(t, err)
	assert.InDelta(t, 12.48, d, 0.0001)
}

func TestTranscodeWritesNextToSource(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := fakeTool(t, dir, "ffmpeg", `[ "$4" = "-vcodec" ] && [ "$5" = "libx264" ] || exit 3
`+touchLast)
	src := filepath.Join(dir, "source.avi")

	out, err := New(WithBinaries(ffmpeg, "")).Transcode(context.Background(), src, CodecH264)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "converted.mp4"), out)
}

func TestRunHonorsTimeout(t *testing.T) {
	dir := t.TempDir()
	ffprobe := fakeTool(t, dir, "ffprobe", "exec sleep 5")

	e := New(WithBinaries("", ffprobe), WithTimeouts(0, 100*time.Millisecond))
	start := time.Now()
	_, err := e.ProbeCodec(context.Background(), "in.mp4")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
}
