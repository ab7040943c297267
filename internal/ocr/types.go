package ocr

// Point represents an integer pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// BoundingBox is an axis-aligned rectangle in pixel coordinates.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Polygon is a quadrilateral around a recognized region, normalized to
// exactly four points in clockwise order starting at the top-left.
type Polygon []Point

// BBox returns the axis-aligned envelope of the polygon.
func (p Polygon) BBox() BoundingBox {
	if len(p) == 0 {
		return BoundingBox{}
	}
	minX, minY := p[0].X, p[0].Y
	maxX, maxY := p[0].X, p[0].Y
	for _, pt := range p[1:] {
		if pt.X < minX {
			minX = pt.X
		}
		if pt.X > maxX {
			maxX = pt.X
		}
		if pt.Y < minY {
			minY = pt.Y
		}
		if pt.Y > maxY {
			maxY = pt.Y
		}
	}
	return BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// RectPolygon builds a 4-point polygon from a bounding box.
func RectPolygon(b BoundingBox) Polygon {
	return Polygon{
		{b.X, b.Y},
		{b.X + b.Width, b.Y},
		{b.X + b.Width, b.Y + b.Height},
		{b.X, b.Y + b.Height},
	}
}

// WordDetail describes one recognized token.
type WordDetail struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
	Polygon    Polygon     `json:"polygon"`
}

// TextLine describes one recognized line of text.
type TextLine struct {
	Text             string      `json:"text"`
	Confidence       float64     `json:"confidence"`
	BBox             BoundingBox `json:"bbox"`
	Polygon          Polygon     `json:"polygon"`
	OrientationAngle float64     `json:"orientation_angle"`
}

// Result is the outcome of OCR on a single image.
type Result struct {
	Text           string         `json:"text"`
	Confidence     float64        `json:"confidence"`
	ProcessingTime float64        `json:"processing_time"`
	WordDetails    []WordDetail   `json:"word_details"`
	TextLines      []TextLine     `json:"text_lines"`
	WordCount      int            `json:"word_count"`
	LineCount      int            `json:"line_count"`
	FilePath       string         `json:"file_path,omitempty"`
	Success        bool           `json:"success"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Finalize recomputes the derived fields from the contained words and lines:
// word/line counts and the result-level confidence (arithmetic mean of word
// confidences, 0 when there are none).
func (r *Result) Finalize() {
	r.WordCount = len(r.WordDetails)
	r.LineCount = len(r.TextLines)
	if r.WordCount == 0 {
		r.Confidence = 0
		return
	}
	var sum float64
	for _, w := range r.WordDetails {
		sum += w.Confidence
	}
	r.Confidence = sum / float64(r.WordCount)
}

// FailedResult builds an error result for the given file.
func FailedResult(path, msg string, elapsed float64) *Result {
	return &Result{
		FilePath:       path,
		ProcessingTime: elapsed,
		Success:        false,
		ErrorMessage:   msg,
	}
}

// VideoResult is the outcome of OCR over a sampled video.
type VideoResult struct {
	Text               string         `json:"text"`
	Confidence         float64        `json:"confidence"`
	ProcessingTime     float64        `json:"processing_time"`
	FramesProcessed    int            `json:"frames_processed"`
	FramesWithText     int            `json:"frames_with_text"`
	UniqueTextSegments int            `json:"unique_text_segments"`
	Success            bool           `json:"success"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// BatchResult aggregates per-file results of a batch job. Individual file
// failures are reported inside Results; the batch itself never fails wholesale.
type BatchResult struct {
	Results             []Result `json:"results"`
	TotalProcessingTime float64  `json:"total_processing_time"`
	BatchSize           int      `json:"batch_size"`
	FilesProcessed      int      `json:"files_processed"`
	FilesFailed         int      `json:"files_failed"`
}

// DocumentResult is the outcome of plain-text extraction from a document file.
type DocumentResult struct {
	Text           string         `json:"text"`
	FilePath       string         `json:"file_path"`
	FileType       string         `json:"file_type"`
	ProcessingTime float64        `json:"processing_time"`
	Success        bool           `json:"success"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}
