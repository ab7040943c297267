package preprocess

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

const (
	// skewDetectWidth is the width images are downsampled to before edge and
	// line detection. Angle estimation does not need full resolution.
	skewDetectWidth = 1000

	// minSkewDegrees below which rotation is skipped to preserve quality.
	minSkewDegrees = 0.2

	// maxSkewLines caps how many Hough peaks vote on the final angle.
	maxSkewLines = 10
)

// deskewImage estimates the dominant text baseline angle and rotates the
// image to level it. Images with negligible skew are returned unchanged.
func deskewImage(img image.Image) image.Image {
	angle := estimateSkew(img)
	if math.Abs(angle) < minSkewDegrees {
		return img
	}
	return rotateReplicate(img, -angle)
}

// estimateSkew returns the median angle in degrees of the strongest
// near-horizontal lines, positive meaning text rising to the right.
func estimateSkew(img image.Image) float64 {
	work := img
	if img.Bounds().Dx() > skewDetectWidth {
		work = imaging.Resize(img, skewDetectWidth, 0, imaging.Lanczos)
	}
	edges := cannyEdges(toGray(work))
	angles := houghNearHorizontal(edges, maxSkewLines)
	if len(angles) == 0 {
		return 0
	}
	sort.Float64s(angles)
	return angles[len(angles)/2]
}

// cannyEdges produces a binary edge map: Gaussian smoothing, Sobel gradients,
// non-maximum suppression along the gradient direction, then double threshold
// with hysteresis.
func cannyEdges(src *image.Gray) *image.Gray {
	blurred := gaussianBlurGray(src, 2, 1.4)
	b := blurred.Bounds()
	w, h := b.Dx(), b.Dy()

	mag := make([]float64, w*h)
	dir := make([]uint8, w*h) // quantized: 0=E/W 1=NE/SW 2=N/S 3=NW/SE
	var maxMag float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			px := func(dx, dy int) float64 {
				return float64(blurred.Pix[(y+dy)*blurred.Stride+x+dx])
			}
			gx := px(1, -1) + 2*px(1, 0) + px(1, 1) - px(-1, -1) - 2*px(-1, 0) - px(-1, 1)
			gy := px(-1, 1) + 2*px(0, 1) + px(1, 1) - px(-1, -1) - 2*px(0, -1) - px(1, -1)
			m := math.Hypot(gx, gy)
			mag[y*w+x] = m
			if m > maxMag {
				maxMag = m
			}
			theta := math.Atan2(gy, gx) * 180 / math.Pi
			if theta < 0 {
				theta += 180
			}
			switch {
			case theta < 22.5 || theta >= 157.5:
				dir[y*w+x] = 0
			case theta < 67.5:
				dir[y*w+x] = 1
			case theta < 112.5:
				dir[y*w+x] = 2
			default:
				dir[y*w+x] = 3
			}
		}
	}
	if maxMag == 0 {
		return image.NewGray(image.Rect(0, 0, w, h))
	}

	high := 0.2 * maxMag
	low := 0.1 * maxMag

	// Non-maximum suppression, keeping strong and candidate weak edges.
	const (
		none   = 0
		weak   = 128
		strong = 255
	)
	edges := image.NewGray(image.Rect(0, 0, w, h))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			m := mag[y*w+x]
			if m < low {
				continue
			}
			var n1, n2 float64
			switch dir[y*w+x] {
			case 0:
				n1, n2 = mag[y*w+x-1], mag[y*w+x+1]
			case 1:
				n1, n2 = mag[(y-1)*w+x+1], mag[(y+1)*w+x-1]
			case 2:
				n1, n2 = mag[(y-1)*w+x], mag[(y+1)*w+x]
			default:
				n1, n2 = mag[(y-1)*w+x-1], mag[(y+1)*w+x+1]
			}
			if m < n1 || m < n2 {
				continue
			}
			if m >= high {
				edges.Pix[y*edges.Stride+x] = strong
			} else {
				edges.Pix[y*edges.Stride+x] = weak
			}
		}
	}

	// Hysteresis: weak edges survive only when connected to a strong edge.
	stack := make([]image.Point, 0, w)
	for y := range h {
		for x := range w {
			if edges.Pix[y*edges.Stride+x] == strong {
				stack = append(stack, image.Pt(x, y))
			}
		}
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := p.X+dx, p.Y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				if edges.Pix[ny*edges.Stride+nx] == weak {
					edges.Pix[ny*edges.Stride+nx] = strong
					stack = append(stack, image.Pt(nx, ny))
				}
			}
		}
	}
	for i, v := range edges.Pix {
		if v == weak {
			edges.Pix[i] = none
		}
	}
	return edges
}

// houghNearHorizontal runs a Hough transform restricted to lines within 15
// degrees of horizontal and returns the angles of the topN strongest peaks.
func houghNearHorizontal(edges *image.Gray, topN int) []float64 {
	b := edges.Bounds()
	w, h := b.Dx(), b.Dy()

	const (
		angleWindow = 15.0 // degrees around horizontal
		angleStep   = 0.25
	)
	// A horizontal line has its normal at theta = 90 degrees.
	thetaCount := int(2*angleWindow/angleStep) + 1
	sinT := make([]float64, thetaCount)
	cosT := make([]float64, thetaCount)
	for i := range thetaCount {
		theta := (90 - angleWindow + float64(i)*angleStep) * math.Pi / 180
		sinT[i] = math.Sin(theta)
		cosT[i] = math.Cos(theta)
	}

	maxRho := int(math.Hypot(float64(w), float64(h))) + 1
	acc := make([]int, thetaCount*(2*maxRho+1))
	for y := range h {
		for x := range w {
			if edges.Pix[y*edges.Stride+x] == 0 {
				continue
			}
			for i := range thetaCount {
				rho := int(math.Round(float64(x)*cosT[i] + float64(y)*sinT[i]))
				acc[i*(2*maxRho+1)+rho+maxRho]++
			}
		}
	}

	type peak struct {
		votes    int
		thetaIdx int
	}
	// Minimum vote count filters incidental alignments on small images.
	minVotes := w / 8
	if minVotes < 20 {
		minVotes = 20
	}
	var peaks []peak
	for i, votes := range acc {
		if votes >= minVotes {
			peaks = append(peaks, peak{votes: votes, thetaIdx: i / (2*maxRho + 1)})
		}
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].votes > peaks[j].votes })
	if len(peaks) > topN {
		peaks = peaks[:topN]
	}

	angles := make([]float64, 0, len(peaks))
	for _, p := range peaks {
		theta := 90 - angleWindow + float64(p.thetaIdx)*angleStep
		// Line direction relative to horizontal; image y grows downward, so
		// negate to make "rising to the right" positive.
		angles = append(angles, -(theta - 90))
	}
	return angles
}

// rotateReplicate rotates counterclockwise about the image center with
// bilinear sampling. Samples outside the source replicate the border pixel,
// avoiding the black wedges plain rotation introduces at the corners.
func rotateReplicate(img image.Image, angleDeg float64) image.Image {
	src := imaging.Clone(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	rad := angleDeg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx, cy := float64(w-1)/2, float64(h-1)/2

	for y := range h {
		for x := range w {
			// Inverse mapping: rotate destination coordinates back.
			dx := float64(x) - cx
			dy := float64(y) - cy
			sx := cx + dx*cos - dy*sin
			sy := cy + dx*sin + dy*cos

			x0 := clampInt(int(math.Floor(sx)), 0, w-1)
			y0 := clampInt(int(math.Floor(sy)), 0, h-1)
			x1 := clampInt(x0+1, 0, w-1)
			y1 := clampInt(y0+1, 0, h-1)
			fx := sx - math.Floor(sx)
			fy := sy - math.Floor(sy)
			if sx < 0 {
				fx = 0
			}
			if sy < 0 {
				fy = 0
			}

			di := y*out.Stride + x*4
			for c := range 4 {
				tl := float64(src.Pix[y0*src.Stride+x0*4+c])
				tr := float64(src.Pix[y0*src.Stride+x1*4+c])
				bl := float64(src.Pix[y1*src.Stride+x0*4+c])
				br := float64(src.Pix[y1*src.Stride+x1*4+c])
				top := tl*(1-fx) + tr*fx
				bot := bl*(1-fx) + br*fx
				out.Pix[di+c] = uint8(top*(1-fy) + bot*fy + 0.5)
			}
		}
	}
	return out
}
