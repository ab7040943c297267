package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillscan/quillscan/internal/ocr"
)

func writeFrame(t *testing.T, dir string, index int, img image.Image) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, fmt.Sprintf("frame_%06d.png", index)))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func solidFrame(v uint8) *image.Gray {
	return grayImage(320, 180, func(x, y int) uint8 { return v })
}

func checkerFrame() *image.Gray {
	return grayImage(320, 180, func(x, y int) uint8 {
		if (x/16+y/16)%2 == 0 {
			return 0
		}
		return 255
	})
}

func TestWalkFramesDeduplicates(t *testing.T) {
	dir := t.TempDir()
	// Three identical frames, then a scene change, then its repeat.
	writeFrame(t, dir, 1, solidFrame(200))
	writeFrame(t, dir, 2, solidFrame(200))
	writeFrame(t, dir, 3, solidFrame(200))
	writeFrame(t, dir, 4, checkerFrame())
	writeFrame(t, dir, 5, checkerFrame())

	s := NewSampler()
	var emitted []string
	scanned, kept, err := s.walkFrames(context.Background(), dir, ocr.DefaultVideoOpts(),
		func(framePath string, index int) error {
			emitted = append(emitted, filepath.Base(framePath))
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 5, scanned)
	assert.Equal(t, 2, kept)
	assert.Equal(t, []string{"frame_000001.png", "frame_000004.png"}, emitted)
}

func TestWalkFramesMaxFramesStopsEarly(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, 1, solidFrame(0))
	writeFrame(t, dir, 2, checkerFrame())
	writeFrame(t, dir, 3, solidFrame(255))

	opts := ocr.DefaultVideoOpts()
	opts.MaxFrames = 1

	s := NewSampler()
	scanned, kept, err := s.walkFrames(context.Background(), dir, opts, func(string, int) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, kept)
	assert.Equal(t, 1, scanned)
}

func TestWalkFramesEmitErrorAborts(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, 1, solidFrame(0))
	writeFrame(t, dir, 2, checkerFrame())

	boom := errors.New("boom")
	s := NewSampler()
	_, kept, err := s.walkFrames(context.Background(), dir, ocr.DefaultVideoOpts(),
		func(string, int) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, kept)
}

func TestWalkFramesLowThresholdKeepsIdenticalFrames(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, 1, solidFrame(128))
	writeFrame(t, dir, 2, solidFrame(128))

	opts := ocr.DefaultVideoOpts()
	// Identical frames score SSIM 1.0, which is >= any valid threshold, so
	// even a permissive threshold must not duplicate them.
	opts.SimilarityThreshold = 0.1

	s := NewSampler()
	_, kept, err := s.walkFrames(context.Background(), dir, opts, func(string, int) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, kept)
}

func TestSampleMissingVideo(t *testing.T) {
	s := NewSampler()
	_, _, err := s.Sample(context.Background(),
		filepath.Join(t.TempDir(), "absent.mp4"), ocr.DefaultVideoOpts(),
		func(string, int) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not open video file")
}

func TestSampleFFmpegFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not_a_video.mp4")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	s := NewSamplerWithFFmpeg(filepath.Join(t.TempDir(), "missing-ffmpeg"))
	_, _, err := s.Sample(context.Background(), path, ocr.DefaultVideoOpts(),
		func(string, int) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not open video file")
}

func TestThumbnailDimensions(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1920, 1080))
	thumb := thumbnail(img)
	assert.Equal(t, thumbWidth, thumb.Bounds().Dx())
	assert.Equal(t, thumbHeight, thumb.Bounds().Dy())
}
