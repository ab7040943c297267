package layout

import (
	"sort"
	"strings"

	"github.com/quillscan/quillscan/internal/ocr"
)

// block is a group of words forming one visual unit of text.
type block struct {
	text       string
	bbox       ocr.BoundingBox
	confidence float64
}

// pageBounds returns the envelope of all word boxes.
func pageBounds(words []ocr.WordDetail) ocr.BoundingBox {
	if len(words) == 0 {
		return ocr.BoundingBox{}
	}
	minX, minY := words[0].BBox.X, words[0].BBox.Y
	maxX := words[0].BBox.X + words[0].BBox.Width
	maxY := words[0].BBox.Y + words[0].BBox.Height
	for _, w := range words[1:] {
		if w.BBox.X < minX {
			minX = w.BBox.X
		}
		if w.BBox.Y < minY {
			minY = w.BBox.Y
		}
		if r := w.BBox.X + w.BBox.Width; r > maxX {
			maxX = r
		}
		if b := w.BBox.Y + w.BBox.Height; b > maxY {
			maxY = b
		}
	}
	return ocr.BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// columnSpan is a horizontal interval occupied by one column of text.
type columnSpan struct {
	start, end int
}

// detectColumns projects word x-extents onto the x-axis and splits the page
// wherever a gap exceeds gapFraction of the page width.
func detectColumns(words []ocr.WordDetail, bounds ocr.BoundingBox, gapFraction float64) []columnSpan {
	if len(words) == 0 || bounds.Width <= 0 {
		return []columnSpan{{bounds.X, bounds.X + bounds.Width}}
	}

	xs := make([]int, 0, 2*len(words))
	for _, w := range words {
		xs = append(xs, w.BBox.X, w.BBox.X+w.BBox.Width)
	}
	sort.Ints(xs)

	threshold := float64(bounds.Width) * gapFraction
	type gap struct{ left, right int }
	var gaps []gap
	for i := 1; i < len(xs); i++ {
		if float64(xs[i]-xs[i-1]) > threshold {
			gaps = append(gaps, gap{xs[i-1], xs[i]})
		}
	}

	if len(gaps) == 0 {
		return []columnSpan{{bounds.X, bounds.X + bounds.Width}}
	}

	cols := make([]columnSpan, 0, len(gaps)+1)
	cols = append(cols, columnSpan{bounds.X, gaps[0].left})
	for i := 0; i < len(gaps)-1; i++ {
		cols = append(cols, columnSpan{gaps[i].right, gaps[i+1].left})
	}
	cols = append(cols, columnSpan{gaps[len(gaps)-1].right, bounds.X + bounds.Width})
	return cols
}

// columnIndexFor finds the column whose interval contains the block's center.
func columnIndexFor(b block, cols []columnSpan) int {
	center := b.bbox.X + b.bbox.Width/2
	for i, c := range cols {
		if center >= c.start && center <= c.end {
			return i
		}
	}
	return 0
}

// groupBlocks sorts words top-to-bottom and walks them, opening a new block
// whenever the vertical offset to the previous word exceeds lineHeightFactor
// times their average height.
func (p *Processor) groupBlocks(words []ocr.WordDetail) []block {
	sorted := make([]ocr.WordDetail, len(words))
	copy(sorted, words)
	// Deterministic for any input permutation: ties on position break on text.
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.BBox.Y != b.BBox.Y {
			return a.BBox.Y < b.BBox.Y
		}
		if a.BBox.X != b.BBox.X {
			return a.BBox.X < b.BBox.X
		}
		return a.Text < b.Text
	})

	var blocks []block
	current := []ocr.WordDetail{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		dy := cur.BBox.Y - prev.BBox.Y
		if dy < 0 {
			dy = -dy
		}
		avgHeight := float64(prev.BBox.Height+cur.BBox.Height) / 2
		if float64(dy) > avgHeight*p.lineHeightFactor {
			blocks = append(blocks, blockFromWords(current))
			current = []ocr.WordDetail{cur}
		} else {
			current = append(current, cur)
		}
	}
	blocks = append(blocks, blockFromWords(current))
	return blocks
}

func blockFromWords(words []ocr.WordDetail) block {
	texts := make([]string, len(words))
	var sum float64
	for i, w := range words {
		texts[i] = w.Text
		sum += w.Confidence
	}
	return block{
		text:       strings.Join(texts, " "),
		bbox:       pageBounds(words),
		confidence: sum / float64(len(words)),
	}
}

// sortBlocks orders blocks by the configured reading order. Table layouts
// always read row-major regardless of the requested order.
func (p *Processor) sortBlocks(blocks []block, kind Kind) []block {
	out := make([]block, len(blocks))
	copy(out, blocks)

	if kind == Table {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].bbox.Y != out[j].bbox.Y {
				return out[i].bbox.Y < out[j].bbox.Y
			}
			return out[i].bbox.X < out[j].bbox.X
		})
		return out
	}

	less := func(i, j int) bool {
		a, b := out[i].bbox, out[j].bbox
		switch p.readingOrder {
		case ocr.ReadingRTLTTB:
			if a.Y != b.Y {
				return a.Y < b.Y
			}
			return a.X > b.X
		case ocr.ReadingTTBLTR:
			if a.X != b.X {
				return a.X < b.X
			}
			return a.Y < b.Y
		case ocr.ReadingTTBRTL:
			if a.X != b.X {
				return a.X > b.X
			}
			return a.Y < b.Y
		default: // ltr_ttb
			if a.Y != b.Y {
				return a.Y < b.Y
			}
			return a.X < b.X
		}
	}
	sort.SliceStable(out, less)
	return out
}
