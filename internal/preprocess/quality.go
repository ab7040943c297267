package preprocess

import (
	"image"
	"math"
)

// Quality holds cheap image statistics used to gate the optional stages.
type Quality struct {
	SharpnessVar float64 // variance of the Laplacian response
	ContrastStd  float64 // standard deviation of luminance
	MeanGradient float64 // mean gradient magnitude
}

// LowContrast reports whether the luminance spread is too narrow for reliable
// binarization without local equalization.
func (q Quality) LowContrast() bool { return q.ContrastStd < 40 }

// Blurry reports whether the image lacks the high-frequency detail sharp text
// produces.
func (q Quality) Blurry() bool { return q.SharpnessVar < 100 }

// Noisy reports whether gradient energy is spread across the whole image
// instead of being concentrated at glyph edges.
func (q Quality) Noisy() bool { return q.MeanGradient > 20 }

// AnalyzeQuality computes the gating statistics over a grayscale image.
func AnalyzeQuality(g *image.Gray) Quality {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return Quality{}
	}

	var sum, sumSq float64
	for y := range h {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for _, v := range row {
			f := float64(v)
			sum += f
			sumSq += f * f
		}
	}
	n := float64(w * h)
	mean := sum / n
	contrast := math.Sqrt(sumSq/n - mean*mean)

	// Laplacian and gradient over interior pixels only.
	var lapSum, lapSumSq, gradSum float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			c := float64(g.Pix[y*g.Stride+x])
			up := float64(g.Pix[(y-1)*g.Stride+x])
			down := float64(g.Pix[(y+1)*g.Stride+x])
			left := float64(g.Pix[y*g.Stride+x-1])
			right := float64(g.Pix[y*g.Stride+x+1])

			lap := up + down + left + right - 4*c
			lapSum += lap
			lapSumSq += lap * lap

			dx := (right - left) / 2
			dy := (down - up) / 2
			gradSum += math.Sqrt(dx*dx + dy*dy)
		}
	}
	m := float64((w - 2) * (h - 2))
	lapMean := lapSum / m

	return Quality{
		SharpnessVar: lapSumSq/m - lapMean*lapMean,
		ContrastStd:  contrast,
		MeanGradient: gradSum / m,
	}
}
