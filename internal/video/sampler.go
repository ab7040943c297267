// Package video samples frames out of video files for text recognition.
// Frames are extracted at a fixed stride with ffmpeg, then filtered by
// structural similarity so near-identical consecutive frames are processed
// only once.
package video

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/quillscan/quillscan/internal/ocr"
)

// Thumbnail dimensions used for similarity comparison. Comparing small
// grayscale thumbnails keeps SSIM cheap without hurting dedup quality.
const (
	thumbWidth  = 320
	thumbHeight = 180
)

// EmitFunc receives each unique frame. framePath points into a temp dir that
// is removed when sampling returns, so the frame must be fully consumed
// before EmitFunc returns. Returning an error aborts sampling.
type EmitFunc func(framePath string, index int) error

// Sampler extracts and deduplicates video frames.
type Sampler struct {
	ffmpegPath string
	logger     *slog.Logger
}

// NewSampler returns a sampler using ffmpeg from PATH.
func NewSampler() *Sampler {
	return &Sampler{ffmpegPath: "ffmpeg", logger: slog.Default()}
}

// NewSamplerWithFFmpeg returns a sampler using the given ffmpeg binary.
func NewSamplerWithFFmpeg(path string) *Sampler {
	return &Sampler{ffmpegPath: path, logger: slog.Default()}
}

// Sample extracts every FrameInterval-th frame of the video, walks the
// extracted frames in order and emits those that differ structurally from
// the previously emitted one. Returns the number of frames scanned and the
// number emitted. The temp dir holding extracted frames is removed on all
// return paths.
func (s *Sampler) Sample(ctx context.Context, videoPath string, opts ocr.VideoOpts, emit EmitFunc) (scanned, kept int, err error) {
	opts.Normalize()

	if _, err := os.Stat(videoPath); err != nil {
		return 0, 0, fmt.Errorf("could not open video file: %w", err)
	}

	framesDir, err := os.MkdirTemp("", "video_frames_")
	if err != nil {
		return 0, 0, fmt.Errorf("create frames dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(framesDir); rmErr != nil {
			s.logger.Warn("failed to remove frames dir", "dir", framesDir, "error", rmErr)
		}
	}()

	if err := s.extractFrames(ctx, videoPath, framesDir, opts.FrameInterval); err != nil {
		return 0, 0, err
	}
	return s.walkFrames(ctx, framesDir, opts, emit)
}

// extractFrames shells out to ffmpeg, writing every interval-th frame of the
// video as a PNG sequence.
func (s *Sampler) extractFrames(ctx context.Context, videoPath, framesDir string, interval int) error {
	filter := fmt.Sprintf(`select=not(mod(n\,%d))`, interval)
	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-vf", filter,
		"-vsync", "vfr",
		filepath.Join(framesDir, "frame_%06d.png"),
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	s.logger.Debug("extracting video frames", "video", videoPath, "interval", interval)
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("could not open video file: %s", msg)
	}
	return nil
}

// walkFrames iterates extracted frames in sequence order, comparing each
// against the last emitted frame and emitting only structural changes.
func (s *Sampler) walkFrames(ctx context.Context, framesDir string, opts ocr.VideoOpts, emit EmitFunc) (scanned, kept int, err error) {
	entries, err := os.ReadDir(framesDir)
	if err != nil {
		return 0, 0, fmt.Errorf("read frames dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".png") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var prevThumb *image.Gray
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return scanned, kept, err
		}
		if kept >= opts.MaxFrames {
			break
		}
		scanned++

		framePath := filepath.Join(framesDir, name)
		frame, err := imaging.Open(framePath)
		if err != nil {
			s.logger.Warn("skipping undecodable frame", "frame", name, "error", err)
			continue
		}
		thumb := thumbnail(frame)

		if prevThumb != nil && SSIM(prevThumb, thumb) >= opts.SimilarityThreshold {
			continue
		}
		prevThumb = thumb
		kept++
		if err := emit(framePath, kept); err != nil {
			return scanned, kept, err
		}
	}
	return scanned, kept, nil
}

// thumbnail produces the small grayscale comparison image.
func thumbnail(img image.Image) *image.Gray {
	small := imaging.Resize(img, thumbWidth, thumbHeight, imaging.Box)
	b := small.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		for x := range b.Dx() {
			base := y*small.Stride + x*4
			r := int(small.Pix[base])
			g := int(small.Pix[base+1])
			bl := int(small.Pix[base+2])
			// Rec. 601 luma, matching common grayscale conversions.
			out.Pix[y*out.Stride+x] = uint8((299*r + 587*g + 114*bl) / 1000)
		}
	}
	return out
}
