package layout

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/quillscan/quillscan/internal/ocr"
)

// ColumnBreak separates columns in multi-column output.
const ColumnBreak = "\n\n--- Column Break ---\n\n"

// emitSingleColumn joins blocks top to bottom, inserting a blank line where
// the vertical gap marks a paragraph boundary.
func (p *Processor) emitSingleColumn(blocks []block) string {
	var sb strings.Builder
	for i, b := range blocks {
		sb.WriteString(b.text)
		if i == len(blocks)-1 {
			break
		}
		next := blocks[i+1]
		gap := next.bbox.Y - (b.bbox.Y + b.bbox.Height)
		avgHeight := float64(b.bbox.Height+next.bbox.Height) / 2
		if float64(gap) > avgHeight*p.paragraphFactor {
			sb.WriteString("\n\n")
		} else {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// emitMultiColumn partitions words into the detected columns by box center,
// reconstructs each column as an independent single-column run, and joins the
// columns with the column break marker. Column order follows the reading
// order (right-to-left orders read the rightmost column first).
func (p *Processor) emitMultiColumn(words []ocr.WordDetail) string {
	cols := detectColumns(words, pageBounds(words), p.columnGapFraction)

	grouped := make(map[int][]ocr.WordDetail)
	for _, w := range words {
		idx := columnIndexFor(block{bbox: w.BBox}, cols)
		grouped[idx] = append(grouped[idx], w)
	}

	indices := make([]int, 0, len(grouped))
	for idx := range grouped {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	if p.readingOrder == ocr.ReadingRTLTTB || p.readingOrder == ocr.ReadingTTBRTL {
		for i, j := 0, len(indices)-1; i < j; i, j = i+1, j-1 {
			indices[i], indices[j] = indices[j], indices[i]
		}
	}

	parts := make([]string, 0, len(indices))
	for _, idx := range indices {
		blocks := p.sortBlocks(p.groupBlocks(grouped[idx]), SingleColumn)
		parts = append(parts, p.emitSingleColumn(blocks))
	}
	return strings.Join(parts, ColumnBreak)
}

// emitTable groups blocks into rows of near-equal vertical position and joins
// cells with " | ".
func (p *Processor) emitTable(blocks []block) string {
	var rows [][]block
	var current []block
	for _, b := range blocks {
		if len(current) == 0 {
			current = []block{b}
			continue
		}
		prev := current[len(current)-1]
		dy := b.bbox.Y - prev.bbox.Y
		if dy < 0 {
			dy = -dy
		}
		avgHeight := float64(prev.bbox.Height+b.bbox.Height) / 2
		if float64(dy) < avgHeight*p.rowHeightFactor {
			current = append(current, b)
		} else {
			rows = append(rows, current)
			current = []block{b}
		}
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}

	lines := make([]string, len(rows))
	for i, row := range rows {
		sort.SliceStable(row, func(a, b int) bool { return row[a].bbox.X < row[b].bbox.X })
		cells := make([]string, len(row))
		for j, b := range row {
			cells[j] = b.text
		}
		lines[i] = strings.Join(cells, " | ")
	}
	return strings.Join(lines, "\n")
}

var multiNewline = regexp.MustCompile(`\n{3,}`)

// cleanText collapses interior whitespace per line, limits consecutive blank
// lines and applies NFC normalization.
func cleanText(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	out := strings.Join(lines, "\n")
	out = multiNewline.ReplaceAllString(out, "\n\n")
	out = norm.NFC.String(out)
	return strings.TrimSpace(out)
}
