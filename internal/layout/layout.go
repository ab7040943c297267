// Package layout reconstructs human reading order from unordered recognized
// word polygons: it classifies the page layout, groups words into blocks,
// sorts blocks by the requested reading order and emits structured text.
package layout

import (
	"log/slog"
	"strings"

	"github.com/quillscan/quillscan/internal/ocr"
)

// Kind describes the detected page layout.
type Kind int

const (
	SingleColumn Kind = iota
	MultiColumn
	Table
)

func (k Kind) String() string {
	switch k {
	case MultiColumn:
		return "multi_column"
	case Table:
		return "table"
	default:
		return "single_column"
	}
}

// Processor turns word polygons into structured text.
type Processor struct {
	readingOrder      string
	lineHeightFactor  float64 // vertical gap starting a new block, in avg heights
	paragraphFactor   float64 // vertical gap forcing a paragraph break
	columnGapFraction float64 // minimum column gap relative to page width
	rowHeightFactor   float64 // max vertical offset keeping table cells in one row
}

// NewProcessor creates a layout processor for the given reading order.
// Unknown orders fall back to left-to-right, top-to-bottom.
func NewProcessor(readingOrder string) *Processor {
	o := ocr.TextOpts{ReadingOrder: readingOrder}
	o.Normalize()
	return &Processor{
		readingOrder:      o.ReadingOrder,
		lineHeightFactor:  1.5,
		paragraphFactor:   2.0,
		columnGapFraction: 0.1,
		rowHeightFactor:   0.5,
	}
}

// Reconstruct produces reading-order text from the given words. Input order is
// irrelevant: any permutation of the same words yields identical output. The
// function never fails; if reconstruction panics the degraded result is the
// plain space-joined concatenation of word texts.
func (p *Processor) Reconstruct(words []ocr.WordDetail) (text string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("layout reconstruction failed, falling back to concatenation", "panic", r)
			text = SimpleJoin(words)
		}
	}()

	if len(words) == 0 {
		return ""
	}

	kind := p.Classify(words)

	var raw string
	switch kind {
	case MultiColumn:
		// Columns are independent runs of text: partition words first so
		// that rows spanning the page are not fused into one block.
		raw = p.emitMultiColumn(words)
	case Table:
		blocks := p.sortBlocks(p.groupBlocks(words), kind)
		raw = p.emitTable(blocks)
	default:
		blocks := p.sortBlocks(p.groupBlocks(words), kind)
		raw = p.emitSingleColumn(blocks)
	}
	return cleanText(raw)
}

// SimpleJoin is the degraded fallback: word texts joined by single spaces.
func SimpleJoin(words []ocr.WordDetail) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Classify detects the page layout from word positions. Fewer than three
// words are always treated as a single column.
func (p *Processor) Classify(words []ocr.WordDetail) Kind {
	if len(words) < 3 {
		return SingleColumn
	}
	bounds := pageBounds(words)
	cols := detectColumns(words, bounds, p.columnGapFraction)
	if len(cols) <= 1 {
		return SingleColumn
	}
	if looksLikeTable(words) {
		return Table
	}
	return MultiColumn
}

// looksLikeTable checks for a grid-ish arrangement: at least three distinct
// row origins and three distinct column origins.
func looksLikeTable(words []ocr.WordDetail) bool {
	xs := make(map[int]struct{})
	ys := make(map[int]struct{})
	for _, w := range words {
		xs[w.BBox.X] = struct{}{}
		ys[w.BBox.Y] = struct{}{}
	}
	return len(xs) >= 3 && len(ys) >= 3
}
