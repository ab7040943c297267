package preprocess

import "image"

// otsuBinary binarizes using Otsu's global threshold, preceded by a light
// Gaussian blur so single-pixel noise does not shift the histogram valley.
func otsuBinary(src *image.Gray) *image.Gray {
	blurred := gaussianBlurGray(src, 2, 1.0)
	b := blurred.Bounds()
	w, h := b.Dx(), b.Dy()

	var hist [256]int
	for y := range h {
		for x := range w {
			hist[blurred.Pix[y*blurred.Stride+x]]++
		}
	}

	total := w * h
	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i * c)
	}

	var sumBack float64
	var wBack int
	var bestVar float64
	threshold := 0
	for t := range 256 {
		wBack += hist[t]
		if wBack == 0 {
			continue
		}
		wFore := total - wBack
		if wFore == 0 {
			break
		}
		sumBack += float64(t * hist[t])
		meanBack := sumBack / float64(wBack)
		meanFore := (sumAll - sumBack) / float64(wFore)
		between := float64(wBack) * float64(wFore) * (meanBack - meanFore) * (meanBack - meanFore)
		if between > bestVar {
			bestVar = between
			threshold = t
		}
	}

	return binarize(blurred, func(x, y int, v uint8) bool { return int(v) > threshold })
}

// adaptiveGaussianBinary thresholds each pixel against the Gaussian-weighted
// mean of its block-sized neighborhood minus the constant c.
func adaptiveGaussianBinary(src *image.Gray, block int, c float64) *image.Gray {
	radius := block / 2
	// Sigma matching a blur whose support roughly spans the block.
	sigma := 0.3*(float64(block-1)*0.5-1) + 0.8
	local := gaussianBlurGray(src, radius, sigma)
	return binarize(src, func(x, y int, v uint8) bool {
		return float64(v) > float64(local.Pix[y*local.Stride+x])-c
	})
}

// adaptiveMeanBinary thresholds each pixel against the arithmetic mean of its
// block-sized neighborhood minus the constant c, via an integral image.
func adaptiveMeanBinary(src *image.Gray, block int, c float64) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	radius := block / 2

	// integral[y][x] = sum of pixels in [0,x) x [0,y).
	integral := make([]int64, (w+1)*(h+1))
	stride := w + 1
	for y := range h {
		var rowSum int64
		for x := range w {
			rowSum += int64(src.Pix[y*src.Stride+x])
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
		}
	}

	return binarize(src, func(x, y int, v uint8) bool {
		x0 := clampInt(x-radius, 0, w-1)
		y0 := clampInt(y-radius, 0, h-1)
		x1 := clampInt(x+radius, 0, w-1)
		y1 := clampInt(y+radius, 0, h-1)
		count := int64((x1 - x0 + 1) * (y1 - y0 + 1))
		sum := integral[(y1+1)*stride+x1+1] - integral[y0*stride+x1+1] -
			integral[(y1+1)*stride+x0] + integral[y0*stride+x0]
		mean := float64(sum) / float64(count)
		return float64(v) > mean-c
	})
}

func binarize(src *image.Gray, keep func(x, y int, v uint8) bool) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			if keep(x, y, src.Pix[y*src.Stride+x]) {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}
