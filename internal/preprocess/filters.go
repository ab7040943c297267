package preprocess

import (
	"image"
	"image/color"
	"math"
)

// toGray converts any image to 8-bit grayscale with zero-based bounds.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		for x := range b.Dx() {
			c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			out.Pix[y*out.Stride+x] = c.Y
		}
	}
	return out
}

// gaussianKernel1D builds a normalized 1D Gaussian kernel of the given radius.
func gaussianKernel1D(radius int, sigma float64) []float64 {
	k := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		k[i+radius] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// gaussianBlurGray applies a separable Gaussian blur with edge clamping.
func gaussianBlurGray(src *image.Gray, radius int, sigma float64) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	kernel := gaussianKernel1D(radius, sigma)

	tmp := make([]float64, w*h)
	for y := range h {
		for x := range w {
			var acc float64
			for i := -radius; i <= radius; i++ {
				sx := clampInt(x+i, 0, w-1)
				acc += kernel[i+radius] * float64(src.Pix[y*src.Stride+sx])
			}
			tmp[y*w+x] = acc
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			var acc float64
			for i := -radius; i <= radius; i++ {
				sy := clampInt(y+i, 0, h-1)
				acc += kernel[i+radius] * tmp[sy*w+x]
			}
			out.Pix[y*out.Stride+x] = uint8(clampInt(int(acc+0.5), 0, 255))
		}
	}
	return out
}

// bilateralDenoise smooths flat regions while preserving glyph edges. The
// range weight suppresses averaging across strong intensity steps.
func bilateralDenoise(src *image.Gray, radius int, sigmaSpace, sigmaRange float64) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	size := 2*radius + 1
	spatial := make([]float64, size*size)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			spatial[(dy+radius)*size+dx+radius] = math.Exp(-d2 / (2 * sigmaSpace * sigmaSpace))
		}
	}
	var rangeW [256]float64
	for d := range 256 {
		rangeW[d] = math.Exp(-float64(d*d) / (2 * sigmaRange * sigmaRange))
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			center := src.Pix[y*src.Stride+x]
			var num, den float64
			for dy := -radius; dy <= radius; dy++ {
				sy := clampInt(y+dy, 0, h-1)
				for dx := -radius; dx <= radius; dx++ {
					sx := clampInt(x+dx, 0, w-1)
					v := src.Pix[sy*src.Stride+sx]
					diff := int(v) - int(center)
					if diff < 0 {
						diff = -diff
					}
					wgt := spatial[(dy+radius)*size+dx+radius] * rangeW[diff]
					num += wgt * float64(v)
					den += wgt
				}
			}
			out.Pix[y*out.Stride+x] = uint8(num/den + 0.5)
		}
	}
	return out
}

// clahe performs contrast-limited adaptive histogram equalization. Each tile
// gets a clipped-histogram lookup table; pixel values interpolate bilinearly
// between the four surrounding tile tables.
func clahe(src *image.Gray, clipLimit float64, tilesX, tilesY int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < tilesX || h < tilesY {
		return src
	}

	tileW := (w + tilesX - 1) / tilesX
	tileH := (h + tilesY - 1) / tilesY

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := range tilesY {
		for tx := range tilesX {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := clampInt(x0+tileW, 0, w), clampInt(y0+tileH, 0, h)

			var hist [256]int
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[src.Pix[y*src.Stride+x]]++
				}
			}
			pixels := (x1 - x0) * (y1 - y0)
			if pixels == 0 {
				continue
			}

			limit := int(clipLimit * float64(pixels) / 256)
			if limit < 1 {
				limit = 1
			}
			var excess int
			for i := range hist {
				if hist[i] > limit {
					excess += hist[i] - limit
					hist[i] = limit
				}
			}
			// Redistribute the clipped mass evenly across all bins.
			share := excess / 256
			rem := excess % 256
			for i := range hist {
				hist[i] += share
				if i < rem {
					hist[i]++
				}
			}

			lut := &luts[ty*tilesX+tx]
			cdf := 0
			for i := range hist {
				cdf += hist[i]
				lut[i] = uint8(clampInt(cdf*255/pixels, 0, 255))
			}
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		fy := (float64(y)-float64(tileH)/2 + 0.5) / float64(tileH)
		ty0 := clampInt(int(math.Floor(fy)), 0, tilesY-1)
		ty1 := clampInt(ty0+1, 0, tilesY-1)
		wy := fy - math.Floor(fy)
		if fy < 0 {
			ty0, ty1, wy = 0, 0, 0
		}
		for x := range w {
			fx := (float64(x)-float64(tileW)/2 + 0.5) / float64(tileW)
			tx0 := clampInt(int(math.Floor(fx)), 0, tilesX-1)
			tx1 := clampInt(tx0+1, 0, tilesX-1)
			wx := fx - math.Floor(fx)
			if fx < 0 {
				tx0, tx1, wx = 0, 0, 0
			}

			v := src.Pix[y*src.Stride+x]
			tl := float64(luts[ty0*tilesX+tx0][v])
			tr := float64(luts[ty0*tilesX+tx1][v])
			bl := float64(luts[ty1*tilesX+tx0][v])
			br := float64(luts[ty1*tilesX+tx1][v])

			top := tl*(1-wx) + tr*wx
			bot := bl*(1-wx) + br*wx
			out.Pix[y*out.Stride+x] = uint8(top*(1-wy) + bot*wy + 0.5)
		}
	}
	return out
}

// dilate2x2 replaces each pixel with the maximum over a 2x2 window.
func dilate2x2(src *image.Gray) *image.Gray {
	return morph2x2(src, func(a, b uint8) bool { return a > b })
}

// erode2x2 replaces each pixel with the minimum over a 2x2 window.
func erode2x2(src *image.Gray) *image.Gray {
	return morph2x2(src, func(a, b uint8) bool { return a < b })
}

func morph2x2(src *image.Gray, better func(a, b uint8) bool) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			best := src.Pix[y*src.Stride+x]
			for dy := 0; dy <= 1; dy++ {
				sy := clampInt(y+dy, 0, h-1)
				for dx := 0; dx <= 1; dx++ {
					sx := clampInt(x+dx, 0, w-1)
					if v := src.Pix[sy*src.Stride+sx]; better(v, best) {
						best = v
					}
				}
			}
			out.Pix[y*out.Stride+x] = best
		}
	}
	return out
}

// closeThenOpen fills pinholes inside glyphs, then clears speckle outside them.
func closeThenOpen(src *image.Gray) *image.Gray {
	closed := erode2x2(dilate2x2(src))
	return dilate2x2(erode2x2(closed))
}
