package preprocess

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillscan/quillscan/internal/ocr"
	"github.com/quillscan/quillscan/internal/testutil"
)

func makeGray(w, h int, at func(x, y int) uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			g.Pix[y*g.Stride+x] = at(x, y)
		}
	}
	return g
}

func writeTempPNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestLoadImage(t *testing.T) {
	t.Run("valid png roundtrip", func(t *testing.T) {
		src := makeGray(40, 30, func(x, y int) uint8 { return uint8(x * 5) })
		path := writeTempPNG(t, src)

		img, meta, err := LoadImage(path)
		require.NoError(t, err)
		assert.Equal(t, 40, meta.Width)
		assert.Equal(t, 30, meta.Height)
		assert.Equal(t, "png", meta.Format)
		assert.Positive(t, meta.SizeBytes)
		assert.Equal(t, 40, img.Bounds().Dx())
	})

	t.Run("empty path", func(t *testing.T) {
		_, _, err := LoadImage("")
		require.Error(t, err)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, _, err := LoadImage("document.xyz")
		require.Error(t, err)
		var decErr *DecodeError
		require.ErrorAs(t, err, &decErr)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := LoadImage(filepath.Join(t.TempDir(), "absent.png"))
		require.Error(t, err)
	})
}

func TestAnalyzeQuality(t *testing.T) {
	t.Run("uniform image is flat blurry low-contrast", func(t *testing.T) {
		q := AnalyzeQuality(makeGray(64, 64, func(x, y int) uint8 { return 128 }))
		assert.True(t, q.LowContrast())
		assert.True(t, q.Blurry())
		assert.False(t, q.Noisy())
	})

	t.Run("random noise is noisy", func(t *testing.T) {
		rng := rand.New(rand.NewPCG(1, 2))
		q := AnalyzeQuality(makeGray(64, 64, func(x, y int) uint8 {
			return uint8(rng.UintN(256))
		}))
		assert.True(t, q.Noisy())
		assert.False(t, q.LowContrast())
	})

	t.Run("tiny image yields zero stats", func(t *testing.T) {
		q := AnalyzeQuality(makeGray(2, 2, func(x, y int) uint8 { return 0 }))
		assert.Zero(t, q.SharpnessVar)
		assert.Zero(t, q.MeanGradient)
	})
}

func TestOtsuBinarySeparatesBimodal(t *testing.T) {
	// Left half dark, right half bright.
	src := makeGray(64, 64, func(x, y int) uint8 {
		if x < 32 {
			return 30
		}
		return 220
	})
	out := otsuBinary(src)

	assert.EqualValues(t, 0, out.Pix[10*out.Stride+5])
	assert.EqualValues(t, 255, out.Pix[10*out.Stride+60])
	for _, v := range out.Pix {
		assert.Contains(t, []uint8{0, 255}, v)
	}
}

func TestAdaptiveMeanBinaryUniformGoesWhite(t *testing.T) {
	// Every pixel equals its local mean, so v > mean - C holds everywhere.
	out := adaptiveMeanBinary(makeGray(32, 32, func(x, y int) uint8 { return 128 }), 11, 2)
	for _, v := range out.Pix {
		assert.EqualValues(t, 255, v)
	}
}

func TestAdaptiveGaussianBinaryDetectsLocalContrast(t *testing.T) {
	// A dark stroke on a bright page must binarize to black on white even
	// though the global histogram is dominated by the page.
	src := makeGray(64, 64, func(x, y int) uint8 {
		if y >= 30 && y < 34 {
			return 20
		}
		return 230
	})
	out := adaptiveGaussianBinary(src, 11, 2)
	assert.EqualValues(t, 0, out.Pix[32*out.Stride+32])
	assert.EqualValues(t, 255, out.Pix[5*out.Stride+32])
}

func TestCloseThenOpenRemovesSpeckle(t *testing.T) {
	src := makeGray(32, 32, func(x, y int) uint8 {
		if x == 16 && y == 16 {
			return 255
		}
		return 0
	})
	out := closeThenOpen(src)
	assert.EqualValues(t, 0, out.Pix[16*out.Stride+16])
}

func TestBilateralDenoisePreservesStrongEdges(t *testing.T) {
	src := makeGray(32, 32, func(x, y int) uint8 {
		if x < 16 {
			return 0
		}
		return 255
	})
	out := bilateralDenoise(src, 2, 2.0, 25.0)
	assert.EqualValues(t, 0, out.Pix[10*out.Stride+15])
	assert.EqualValues(t, 255, out.Pix[10*out.Stride+16])
}

func TestCLAHEKeepsUniformImageUniform(t *testing.T) {
	out := clahe(makeGray(64, 64, func(x, y int) uint8 { return 128 }), 2.0, 8, 8)
	for _, v := range out.Pix {
		assert.InDelta(t, 128, float64(v), 6)
	}
}

func drawSkewedBand(angleDeg float64) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 800, 200))
	for y := range 200 {
		for x := range 800 {
			img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}
	slope := math.Tan(angleDeg * math.Pi / 180)
	for x := 40; x < 760; x++ {
		center := 100 - slope*float64(x-400)
		for dy := -4; dy <= 4; dy++ {
			y := int(center) + dy
			if y >= 0 && y < 200 {
				img.SetNRGBA(x, y, color.NRGBA{0, 0, 0, 255})
			}
		}
	}
	return img
}

func TestEstimateSkewFindsBandAngle(t *testing.T) {
	got := estimateSkew(drawSkewedBand(3))
	assert.InDelta(t, 3.0, got, 0.6)
}

func TestDeskewImageLevelsText(t *testing.T) {
	leveled := deskewImage(drawSkewedBand(3))
	residual := estimateSkew(leveled)
	assert.Less(t, math.Abs(residual), 0.6)
}

func TestEstimateSkewLevelBandIsNearZero(t *testing.T) {
	got := estimateSkew(drawSkewedBand(0))
	assert.InDelta(t, 0, got, 0.3)
}

func TestPipelineProcessFallsBackToBlankPage(t *testing.T) {
	p := NewPipeline()
	img := p.Process(filepath.Join(t.TempDir(), "missing.png"), ocr.DefaultPreprocessOpts())
	require.NotNil(t, img)
	assert.Equal(t, blankPageWidth, img.Bounds().Dx())
	assert.Equal(t, blankPageHeight, img.Bounds().Dy())

	r, g, b, _ := img.At(0, 0).RGBA()
	assert.EqualValues(t, 0xffff, r)
	assert.EqualValues(t, 0xffff, g)
	assert.EqualValues(t, 0xffff, b)
}

func TestPipelineApplyNoStagesReturnsInput(t *testing.T) {
	p := NewPipeline()
	src := makeGray(20, 20, func(x, y int) uint8 { return uint8(x + y) })
	opts := ocr.PreprocessOpts{ThresholdMethod: ocr.ThresholdNone}
	assert.Equal(t, image.Image(src), p.Apply(src, opts))
}

func TestPipelineUpscaleIfNeeded(t *testing.T) {
	p := NewPipeline()

	small := makeGray(100, 50, func(x, y int) uint8 { return 200 })
	up := p.upscaleIfNeeded(small)
	assert.Equal(t, 600, up.Bounds().Dx())
	assert.Equal(t, 300, up.Bounds().Dy())

	wide := makeGray(800, 50, func(x, y int) uint8 { return 200 })
	assert.Equal(t, image.Image(wide), p.upscaleIfNeeded(wide))
}

func TestPipelineApplyThresholdProducesBinary(t *testing.T) {
	p := NewPipeline()
	src := makeGray(640, 64, func(x, y int) uint8 {
		if x < 320 {
			return 30
		}
		return 220
	})
	out := p.Apply(src, ocr.PreprocessOpts{ThresholdMethod: ocr.ThresholdOtsu})
	gray, ok := out.(*image.Gray)
	require.True(t, ok)
	for _, v := range gray.Pix {
		assert.Contains(t, []uint8{0, 255}, v)
	}
}

func TestPipelineProcessRenderedText(t *testing.T) {
	path := testutil.WriteTextImagePNG(t, t.TempDir(), 640, 120, "The quick brown fox", "jumps over the lazy dog")

	p := NewPipeline()
	out := p.Process(path, ocr.PreprocessOpts{ThresholdMethod: ocr.ThresholdOtsu})

	gray, ok := out.(*image.Gray)
	require.True(t, ok)

	dark := 0
	for _, v := range gray.Pix {
		require.Contains(t, []uint8{0, 255}, v)
		if v == 0 {
			dark++
		}
	}
	// Glyph strokes survive binarization without flooding the page.
	assert.Greater(t, dark, 100)
	assert.Less(t, dark, len(gray.Pix)/4)
}
