package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessOptsNormalize(t *testing.T) {
	o := PreprocessOpts{ThresholdMethod: "sauvola"}
	o.Normalize()
	assert.Equal(t, ThresholdNone, o.ThresholdMethod)

	o = PreprocessOpts{ThresholdMethod: ThresholdOtsu}
	o.Normalize()
	assert.Equal(t, ThresholdOtsu, o.ThresholdMethod)
}

func TestTextOptsNormalize(t *testing.T) {
	o := TextOpts{ReadingOrder: "boustrophedon"}
	o.Normalize()
	assert.Equal(t, ReadingLTRTTB, o.ReadingOrder)
}

func TestVideoOptsNormalize(t *testing.T) {
	o := VideoOpts{
		FrameInterval:       0,
		SimilarityThreshold: 1.5,
		MinConfidence:       -0.2,
		MaxFrames:           0,
	}
	o.Normalize()
	assert.Equal(t, 1, o.FrameInterval)
	assert.InDelta(t, 0.98, o.SimilarityThreshold, 1e-9)
	assert.InDelta(t, 0.5, o.MinConfidence, 1e-9)
	assert.Equal(t, 1, o.MaxFrames)

	// Valid values pass through untouched.
	o = VideoOpts{FrameInterval: 5, SimilarityThreshold: 0.9, MinConfidence: 0.3, MaxFrames: 10}
	o.Normalize()
	assert.Equal(t, VideoOpts{FrameInterval: 5, SimilarityThreshold: 0.9, MinConfidence: 0.3, MaxFrames: 10}, o)
}

func TestCanonicalOptionsJSONDeterministic(t *testing.T) {
	a := CanonicalOptionsJSON(DefaultPreprocessOpts(), DefaultTextOpts())
	b := CanonicalOptionsJSON(DefaultPreprocessOpts(), DefaultTextOpts())
	require.NotEmpty(t, a)
	assert.Equal(t, a, b)

	c := CanonicalOptionsJSON(PreprocessOpts{Denoise: true}, DefaultTextOpts())
	assert.NotEqual(t, a, c)
}

func TestSupportedFormats(t *testing.T) {
	assert.True(t, IsImagePath("scan.PNG"))
	assert.True(t, IsImagePath("/data/receipt.jpeg"))
	assert.False(t, IsImagePath("clip.mp4"))

	assert.True(t, IsVideoPath("clip.mp4"))
	assert.True(t, IsVideoPath("movie.MKV"))
	assert.False(t, IsVideoPath("scan.png"))

	assert.True(t, IsDocumentPath("report.pdf"))
	assert.True(t, IsDocumentPath("notes.TXT"))
	assert.False(t, IsDocumentPath("archive.zip"))
}
