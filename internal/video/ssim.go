package video

import (
	"image"
	"math"
)

// SSIM constants for 8-bit images, per Wang et al.
const (
	ssimK1 = 0.01
	ssimK2 = 0.03
	ssimL  = 255.0
)

// gaussian window used for local statistics.
const (
	ssimWindowRadius = 5
	ssimSigma        = 1.5
)

// SSIM computes the mean structural similarity between two equally sized
// grayscale images. Returns a value in [-1, 1]; identical images score 1.
func SSIM(a, b *image.Gray) float64 {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() || ab.Dx() == 0 || ab.Dy() == 0 {
		return 0
	}
	w, h := ab.Dx(), ab.Dy()

	x := grayToFloats(a)
	y := grayToFloats(b)
	xx := make([]float64, len(x))
	yy := make([]float64, len(x))
	xy := make([]float64, len(x))
	for i := range x {
		xx[i] = x[i] * x[i]
		yy[i] = y[i] * y[i]
		xy[i] = x[i] * y[i]
	}

	muX := gaussianSmooth(x, w, h)
	muY := gaussianSmooth(y, w, h)
	eXX := gaussianSmooth(xx, w, h)
	eYY := gaussianSmooth(yy, w, h)
	eXY := gaussianSmooth(xy, w, h)

	c1 := (ssimK1 * ssimL) * (ssimK1 * ssimL)
	c2 := (ssimK2 * ssimL) * (ssimK2 * ssimL)

	var sum float64
	for i := range muX {
		mx, my := muX[i], muY[i]
		varX := eXX[i] - mx*mx
		varY := eYY[i] - my*my
		cov := eXY[i] - mx*my

		num := (2*mx*my + c1) * (2*cov + c2)
		den := (mx*mx + my*my + c1) * (varX + varY + c2)
		sum += num / den
	}
	return sum / float64(len(muX))
}

func grayToFloats(g *image.Gray) []float64 {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)
	for y := range h {
		for x := range w {
			out[y*w+x] = float64(g.Pix[y*g.Stride+x])
		}
	}
	return out
}

// gaussianSmooth applies a separable Gaussian with edge clamping.
func gaussianSmooth(src []float64, w, h int) []float64 {
	radius := ssimWindowRadius
	kernel := make([]float64, 2*radius+1)
	var ksum float64
	for i := -radius; i <= radius; i++ {
		v := gaussianWeight(float64(i), ssimSigma)
		kernel[i+radius] = v
		ksum += v
	}
	for i := range kernel {
		kernel[i] /= ksum
	}

	clamp := func(v, hi int) int {
		if v < 0 {
			return 0
		}
		if v > hi {
			return hi
		}
		return v
	}

	tmp := make([]float64, len(src))
	for y := range h {
		for x := range w {
			var acc float64
			for i := -radius; i <= radius; i++ {
				acc += kernel[i+radius] * src[y*w+clamp(x+i, w-1)]
			}
			tmp[y*w+x] = acc
		}
	}
	out := make([]float64, len(src))
	for y := range h {
		for x := range w {
			var acc float64
			for i := -radius; i <= radius; i++ {
				acc += kernel[i+radius] * tmp[clamp(y+i, h-1)*w+x]
			}
			out[y*w+x] = acc
		}
	}
	return out
}

func gaussianWeight(d, sigma float64) float64 {
	return math.Exp(-d * d / (2 * sigma * sigma))
}
