// Package preprocess prepares image files for text recognition. The pipeline
// runs a fixed stage order gated by per-request options and cheap quality
// analysis, and never fails: any stage error degrades to the best image
// available so far.
package preprocess

import (
	"image"
	"image/color"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/quillscan/quillscan/internal/ocr"
)

// MinWidthForOCR is the narrowest width at which recognition stays reliable.
// Narrower inputs are upscaled to this width when upscaling is enabled.
const MinWidthForOCR = 600

// Fallback page dimensions when even decoding fails.
const (
	blankPageWidth  = 600
	blankPageHeight = 800
)

// Pipeline applies the preprocessing stages to image files.
type Pipeline struct {
	minWidth int
	logger   *slog.Logger
}

// NewPipeline returns a pipeline with production defaults.
func NewPipeline() *Pipeline {
	return &Pipeline{minWidth: MinWidthForOCR, logger: slog.Default()}
}

// Process loads the file and applies the enabled stages. It never returns an
// error: an undecodable file yields a blank white page so downstream code
// always receives an image.
func (p *Pipeline) Process(path string, opts ocr.PreprocessOpts) image.Image {
	img, _, err := LoadImage(path)
	if err != nil {
		p.logger.Error("image decode failed, substituting blank page",
			"path", path, "error", err)
		return imaging.New(blankPageWidth, blankPageHeight, color.White)
	}
	return p.Apply(img, opts)
}

// Apply runs the enabled stages over an already decoded image. A panic in any
// stage degrades to the unprocessed input.
func (p *Pipeline) Apply(img image.Image, opts ocr.PreprocessOpts) (out image.Image) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("preprocessing failed, using unprocessed image", "panic", r)
			out = img
		}
	}()

	opts.Normalize()
	if !anyStageEnabled(opts) {
		return img
	}

	work := img
	if opts.Upscale {
		work = p.upscaleIfNeeded(work)
	}
	if opts.Deskew {
		work = deskewImage(work)
	}

	gray := toGray(work)
	quality := AnalyzeQuality(gray)

	if opts.Denoise && (quality.Blurry() || quality.Noisy()) {
		gray = bilateralDenoise(gray, 2, 2.0, 25.0)
	}
	if opts.EnhanceContrast && quality.LowContrast() {
		gray = clahe(gray, 2.0, 8, 8)
	}

	switch opts.ThresholdMethod {
	case ocr.ThresholdOtsu:
		gray = otsuBinary(gray)
	case ocr.ThresholdAdaptiveGaussian:
		gray = adaptiveGaussianBinary(gray, 11, 2)
	case ocr.ThresholdAdaptiveMean:
		gray = adaptiveMeanBinary(gray, 11, 2)
	}

	if opts.ApplyMorphology && quality.Noisy() {
		gray = closeThenOpen(gray)
	}
	return gray
}

// upscaleIfNeeded enlarges narrow images to the minimum recognition width,
// preserving aspect ratio with Lanczos resampling.
func (p *Pipeline) upscaleIfNeeded(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() >= p.minWidth || b.Dx() == 0 {
		return img
	}
	p.logger.Debug("upscaling narrow image",
		"width", b.Dx(), "height", b.Dy(), "target_width", p.minWidth)
	return imaging.Resize(img, p.minWidth, 0, imaging.Lanczos)
}

func anyStageEnabled(o ocr.PreprocessOpts) bool {
	return o.Upscale || o.Deskew || o.Denoise || o.EnhanceContrast ||
		o.ApplyMorphology || o.ThresholdMethod != ocr.ThresholdNone
}
