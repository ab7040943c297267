package ocr

import "encoding/json"

// Threshold methods for binarization during preprocessing.
const (
	ThresholdNone             = "none"
	ThresholdOtsu             = "otsu"
	ThresholdAdaptiveGaussian = "adaptive_gaussian"
	ThresholdAdaptiveMean     = "adaptive_mean"
)

// Reading order patterns for layout reconstruction.
const (
	ReadingLTRTTB = "ltr_ttb" // left-to-right, top-to-bottom
	ReadingRTLTTB = "rtl_ttb" // right-to-left, top-to-bottom
	ReadingTTBLTR = "ttb_ltr" // top-to-bottom, left-to-right
	ReadingTTBRTL = "ttb_rtl" // top-to-bottom, right-to-left
)

// PreprocessOpts controls the image enhancement pipeline.
type PreprocessOpts struct {
	EnhanceContrast bool   `json:"enhance_contrast" mapstructure:"enhance_contrast"`
	Denoise         bool   `json:"denoise" mapstructure:"denoise"`
	ThresholdMethod string `json:"threshold_method" mapstructure:"threshold_method"`
	ApplyMorphology bool   `json:"apply_morphology" mapstructure:"apply_morphology"`
	Deskew          bool   `json:"deskew" mapstructure:"deskew"`
	Upscale         bool   `json:"upscale" mapstructure:"upscale"`
}

// DefaultPreprocessOpts returns the defaults applied when a request omits
// preprocessing options.
func DefaultPreprocessOpts() PreprocessOpts {
	return PreprocessOpts{
		EnhanceContrast: true,
		Denoise:         true,
		ThresholdMethod: ThresholdAdaptiveGaussian,
		ApplyMorphology: true,
		Deskew:          true,
		Upscale:         true,
	}
}

// Normalize clamps invalid values to their defaults.
func (o *PreprocessOpts) Normalize() {
	switch o.ThresholdMethod {
	case ThresholdNone, ThresholdOtsu, ThresholdAdaptiveGaussian, ThresholdAdaptiveMean:
	default:
		o.ThresholdMethod = ThresholdNone
	}
}

// TextOpts controls layout reconstruction of recognized words.
type TextOpts struct {
	UseAdvanced  bool   `json:"use_advanced_processing" mapstructure:"use_advanced_processing"`
	ReadingOrder string `json:"reading_order" mapstructure:"reading_order"`
}

// DefaultTextOpts returns the default text processing options.
func DefaultTextOpts() TextOpts {
	return TextOpts{UseAdvanced: true, ReadingOrder: ReadingLTRTTB}
}

// Normalize clamps invalid values to their defaults.
func (o *TextOpts) Normalize() {
	switch o.ReadingOrder {
	case ReadingLTRTTB, ReadingRTLTTB, ReadingTTBLTR, ReadingTTBRTL:
	default:
		o.ReadingOrder = ReadingLTRTTB
	}
}

// VideoOpts controls video frame sampling and aggregation.
type VideoOpts struct {
	FrameInterval       int     `json:"frame_interval" mapstructure:"frame_interval"`
	SimilarityThreshold float64 `json:"similarity_threshold" mapstructure:"similarity_threshold"`
	MinConfidence       float64 `json:"min_confidence" mapstructure:"min_confidence"`
	MaxFrames           int     `json:"max_frames" mapstructure:"max_frames"`
}

// DefaultVideoOpts returns the default video sampling options.
func DefaultVideoOpts() VideoOpts {
	return VideoOpts{
		FrameInterval:       30,
		SimilarityThreshold: 0.98,
		MinConfidence:       0.5,
		MaxFrames:           1000,
	}
}

// Normalize clamps out-of-range values to their defaults.
func (o *VideoOpts) Normalize() {
	if o.FrameInterval < 1 {
		o.FrameInterval = 1
	}
	if o.MaxFrames < 1 {
		o.MaxFrames = 1
	}
	if o.SimilarityThreshold < 0 || o.SimilarityThreshold > 1 {
		o.SimilarityThreshold = 0.98
	}
	if o.MinConfidence < 0 || o.MinConfidence > 1 {
		o.MinConfidence = 0.5
	}
}

// CanonicalOptionsJSON serializes preprocessing and text options into a stable
// byte sequence for cache key derivation. Struct field order is fixed, so the
// encoding is deterministic for equal option values.
func CanonicalOptionsJSON(pre PreprocessOpts, text TextOpts) []byte {
	b, err := json.Marshal(struct {
		Pre  PreprocessOpts `json:"preprocessing"`
		Text TextOpts       `json:"text_processing"`
	}{pre, text})
	if err != nil {
		// Marshaling plain structs of bools and strings cannot fail.
		return nil
	}
	return b
}
