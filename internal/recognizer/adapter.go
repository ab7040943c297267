package recognizer

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quillscan/quillscan/internal/ocr"
)

// Adapter status values reported on health endpoints.
const (
	StatusReady          = "ready"
	StatusNotInitialized = "not_initialized"
)

// MinOCRConfidence is the floor below which recognized regions are dropped.
const MinOCRConfidence = 0.5

// ErrNotInitialized is returned for recognition requests when engine
// initialization failed.
var ErrNotInitialized = errors.New("recognition engine is not initialized")

// Adapter owns the single engine slot. It guards initialization with a
// sync.Once, serializes inference with a mutex, and normalizes raw engine
// output into WordDetail and TextLine values.
type Adapter struct {
	engine Engine
	logger *slog.Logger

	initOnce sync.Once
	initDone atomic.Bool
	initErr  error

	mu sync.Mutex // serializes Recognize calls

	minConfidence float64
}

// NewAdapter wraps an engine. Init must be called before Recognize.
func NewAdapter(engine Engine) *Adapter {
	return &Adapter{
		engine:        engine,
		logger:        slog.Default(),
		minConfidence: MinOCRConfidence,
	}
}

// Init initializes the engine exactly once and runs a synthetic warmup pass
// so the first real request does not pay cold-start cost. Subsequent calls
// return the first outcome.
func (a *Adapter) Init() error {
	a.initOnce.Do(func() {
		defer a.initDone.Store(true)
		start := time.Now()
		if err := a.engine.Init(); err != nil {
			a.initErr = err
			a.logger.Error("engine initialization failed", "error", err)
			return
		}
		a.warmup()
		a.logger.Info("recognition engine ready", "init_time", time.Since(start))
	})
	return a.initErr
}

// warmup runs one inference over a small blank image. Failures are logged
// only; a warmup error does not make the engine unavailable.
func (a *Adapter) warmup() {
	img := image.NewNRGBA(image.Rect(0, 0, 192, 48))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	if _, err := a.engine.Recognize(img); err != nil {
		a.logger.Warn("engine warmup failed", "error", err)
	}
}

// Status reports whether the adapter can serve recognition requests.
func (a *Adapter) Status() string {
	if !a.initDone.Load() || a.initErr != nil {
		return StatusNotInitialized
	}
	return StatusReady
}

// Ready reports whether initialization succeeded.
func (a *Adapter) Ready() bool { return a.Status() == StatusReady }

// Recognize runs one serialized inference pass and normalizes the output.
// Regions below the confidence floor or with empty text are dropped.
func (a *Adapter) Recognize(ctx context.Context, img image.Image) ([]ocr.WordDetail, []ocr.TextLine, error) {
	if err := a.Init(); err != nil {
		return nil, nil, ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	a.mu.Lock()
	raw, err := a.engine.Recognize(img)
	a.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}
	words, lines := a.normalize(raw)
	return words, lines, nil
}

// Close releases the engine.
func (a *Adapter) Close() error {
	return a.engine.Close()
}

func (a *Adapter) normalize(raw *RawResult) ([]ocr.WordDetail, []ocr.TextLine) {
	if raw == nil {
		return nil, nil
	}

	var words []ocr.WordDetail
	var lines []ocr.TextLine
	for i, text := range raw.Texts {
		if i >= len(raw.Scores) || i >= len(raw.Polys) {
			break
		}
		score := raw.Scores[i]
		if score < a.minConfidence || strings.TrimSpace(text) == "" {
			continue
		}

		poly := roundPolygon(raw.Polys[i])
		if len(poly) == 0 {
			continue
		}
		bbox := poly.BBox()

		var angle float64
		if i < len(raw.Angles) {
			angle = raw.Angles[i]
		}

		words = append(words, ocr.WordDetail{
			Text:       text,
			Confidence: score,
			BBox:       bbox,
			Polygon:    poly,
		})
		lines = append(lines, ocr.TextLine{
			Text:             text,
			Confidence:       score,
			BBox:             bbox,
			Polygon:          poly,
			OrientationAngle: angle,
		})
	}
	return words, lines
}

func roundPolygon(pts []Point) ocr.Polygon {
	if len(pts) == 0 {
		return nil
	}
	poly := make(ocr.Polygon, len(pts))
	for i, p := range pts {
		poly[i] = ocr.Point{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
	}
	return poly
}
