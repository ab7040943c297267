// Package recognizer wraps a text recognition engine behind a serialized
// adapter. The adapter owns initialization, warmup and the normalization of
// raw engine output into the result types the rest of the service consumes.
package recognizer

import "image"

// RawResult is the unnormalized output of one inference pass. Slices are
// index-aligned: entry i of each slice describes the same detected region.
type RawResult struct {
	Texts  []string
	Scores []float64
	Polys  [][]Point
	Angles []float64 // per-region orientation in degrees, may be shorter
}

// Point is a raw polygon vertex in pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// Engine runs model inference over a single image. Implementations need not
// be safe for concurrent use; the Adapter serializes all calls.
type Engine interface {
	// Init loads models and allocates sessions. Called exactly once.
	Init() error

	// Recognize detects and recognizes text regions in the image.
	Recognize(img image.Image) (*RawResult, error)

	// Close releases engine resources.
	Close() error
}
