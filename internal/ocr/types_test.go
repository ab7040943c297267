package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolygonBBox(t *testing.T) {
	tests := []struct {
		name string
		poly Polygon
		want BoundingBox
	}{
		{
			name: "empty polygon",
			poly: nil,
			want: BoundingBox{},
		},
		{
			name: "axis-aligned quad",
			poly: Polygon{{10, 20}, {110, 20}, {110, 50}, {10, 50}},
			want: BoundingBox{X: 10, Y: 20, Width: 100, Height: 30},
		},
		{
			name: "rotated quad",
			poly: Polygon{{50, 0}, {100, 50}, {50, 100}, {0, 50}},
			want: BoundingBox{X: 0, Y: 0, Width: 100, Height: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.poly.BBox())
		})
	}
}

func TestRectPolygonRoundTrip(t *testing.T) {
	box := BoundingBox{X: 5, Y: 7, Width: 40, Height: 12}
	poly := RectPolygon(box)
	require.Len(t, poly, 4)
	assert.Equal(t, box, poly.BBox())
}

func TestResultFinalize(t *testing.T) {
	t.Run("empty result", func(t *testing.T) {
		r := &Result{Success: true, Confidence: 0.7}
		r.Finalize()
		assert.Zero(t, r.Confidence)
		assert.Zero(t, r.WordCount)
		assert.Zero(t, r.LineCount)
	})

	t.Run("mean of word confidences", func(t *testing.T) {
		r := &Result{
			WordDetails: []WordDetail{
				{Text: "a", Confidence: 0.8},
				{Text: "b", Confidence: 0.6},
				{Text: "c", Confidence: 1.0},
			},
			TextLines: []TextLine{{Text: "a b c", Confidence: 0.8}},
		}
		r.Finalize()
		assert.InDelta(t, 0.8, r.Confidence, 1e-9)
		assert.Equal(t, 3, r.WordCount)
		assert.Equal(t, 1, r.LineCount)
	})
}

func TestFailedResult(t *testing.T) {
	r := FailedResult("/tmp/missing.png", "File not found", 0.01)
	assert.False(t, r.Success)
	assert.Equal(t, "File not found", r.ErrorMessage)
	assert.Equal(t, "/tmp/missing.png", r.FilePath)
	assert.Empty(t, r.Text)
}
