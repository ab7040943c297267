// Package pipeline dispatches OCR jobs onto a fixed worker pool, wiring the
// preprocessor, the serialized recognition engine, the result cache and the
// layout processor into complete image, batch and video operations.
package pipeline

import (
	"context"
	"encoding/json"
	"image"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/quillscan/quillscan/internal/cache"
	"github.com/quillscan/quillscan/internal/layout"
	"github.com/quillscan/quillscan/internal/ocr"
	"github.com/quillscan/quillscan/internal/preprocess"
	"github.com/quillscan/quillscan/internal/recognizer"
	"github.com/quillscan/quillscan/internal/textdedup"
	"github.com/quillscan/quillscan/internal/video"
)

// Recognizer is the engine adapter surface the dispatcher depends on.
type Recognizer interface {
	Init() error
	Recognize(ctx context.Context, img image.Image) ([]ocr.WordDetail, []ocr.TextLine, error)
	Status() string
}

var _ Recognizer = (*recognizer.Adapter)(nil)

// FrameSampler extracts deduplicated video frames.
type FrameSampler interface {
	Sample(ctx context.Context, videoPath string, opts ocr.VideoOpts, emit video.EmitFunc) (scanned, kept int, err error)
}

var _ FrameSampler = (*video.Sampler)(nil)

// Config tunes the dispatcher.
type Config struct {
	Workers          int
	ImageTimeout     time.Duration
	BatchItemTimeout time.Duration
	FrameTimeout     time.Duration
	BatchConcurrency int     // per-batch semaphore ceiling
	DedupThreshold   float64 // cross-frame text similarity threshold
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Workers:          8,
		ImageTimeout:     30 * time.Second,
		BatchItemTimeout: 60 * time.Second,
		FrameTimeout:     45 * time.Second,
		BatchConcurrency: 8,
		DedupThreshold:   textdedup.DefaultThreshold,
	}
}

// VideoProgress reports one processed unique frame during a video job.
type VideoProgress struct {
	FrameIndex int     `json:"frame_index"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Success    bool    `json:"success"`
}

// Dispatcher owns the worker pool and the shared processing components.
type Dispatcher struct {
	cfg     Config
	rec     Recognizer
	cache   *cache.Cache
	pre     *preprocess.Pipeline
	sampler FrameSampler
	metrics *Metrics
	logger  *slog.Logger

	jobs chan func()
}

// New creates a dispatcher and starts its workers.
func New(cfg Config, rec Recognizer, c *cache.Cache, pre *preprocess.Pipeline, sampler FrameSampler, metrics *Metrics) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = cfg.Workers
	}
	if cfg.DedupThreshold <= 0 || cfg.DedupThreshold > 1 {
		cfg.DedupThreshold = textdedup.DefaultThreshold
	}
	d := &Dispatcher{
		cfg:     cfg,
		rec:     rec,
		cache:   c,
		pre:     pre,
		sampler: sampler,
		metrics: metrics,
		logger:  slog.Default(),
		jobs:    make(chan func()),
	}
	for range cfg.Workers {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	for job := range d.jobs {
		job()
	}
}

// Close stops accepting jobs. Outstanding jobs run to completion.
func (d *Dispatcher) Close() {
	close(d.jobs)
}

// Metrics exposes the metrics container for the HTTP surface.
func (d *Dispatcher) Metrics() *Metrics { return d.metrics }

// CacheStats exposes cache counters for the HTTP surface.
func (d *Dispatcher) CacheStats() cache.Stats { return d.cache.Snapshot() }

// RecognizerStatus reports engine availability.
func (d *Dispatcher) RecognizerStatus() string { return d.rec.Status() }

// WarmUp initializes the recognition engine so readiness does not wait for
// the first request. Safe to call concurrently with request traffic.
func (d *Dispatcher) WarmUp() error { return d.rec.Init() }

// run executes fn on the pool and waits for completion or context expiry.
// When the context expires first the job still runs to completion on its
// worker; its result is discarded.
func (d *Dispatcher) run(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan struct{})
	job := func() {
		defer close(done)
		fn()
	}
	select {
	case d.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitImage runs OCR over one image file.
func (d *Dispatcher) SubmitImage(ctx context.Context, path string, preOpts ocr.PreprocessOpts, textOpts ocr.TextOpts) *ocr.Result {
	start := time.Now()
	jobID := uuid.NewString()
	preOpts.Normalize()
	textOpts.Normalize()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.ImageTimeout)
	defer cancel()

	var res *ocr.Result
	err := d.run(ctx, func() {
		res = d.processImage(ctx, jobID, path, preOpts, textOpts)
	})
	if err != nil {
		d.logger.Warn("image job aborted", "job_id", jobID, "path", path, "error", err)
		d.metrics.Inc("error_count", 1)
		jobsTotal.WithLabelValues("image", "error").Inc()
		return ocr.FailedResult(path, err.Error(), time.Since(start).Seconds())
	}

	elapsed := time.Since(start).Seconds()
	res.ProcessingTime = elapsed
	d.metrics.ObserveProcessingTime(elapsed)
	jobDuration.WithLabelValues("image").Observe(elapsed)
	if res.Success {
		d.metrics.Inc("images_processed", 1)
		jobsTotal.WithLabelValues("image", "success").Inc()
	} else {
		d.metrics.Inc("error_count", 1)
		jobsTotal.WithLabelValues("image", "error").Inc()
	}
	return res
}

// processImage is the cache-integrated OCR path shared by image, batch and
// video-frame jobs. It always returns a result, never an error.
func (d *Dispatcher) processImage(ctx context.Context, jobID, path string, preOpts ocr.PreprocessOpts, textOpts ocr.TextOpts) *ocr.Result {
	start := time.Now()

	fileBytes, err := os.ReadFile(path) //nolint:gosec // G304: reading user-provided path is the operation
	if err != nil {
		return ocr.FailedResult(path, "File not found or unreadable.", time.Since(start).Seconds())
	}

	key := cache.Key(fileBytes, ocr.CanonicalOptionsJSON(preOpts, textOpts))
	payload, hit, err := d.cache.GetOrCompute(key, func() ([]byte, error) {
		res, err := d.recognizeFile(ctx, jobID, path, preOpts, textOpts)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)
	})
	if hit {
		d.metrics.Inc("cache_hits", 1)
	} else {
		d.metrics.Inc("cache_misses", 1)
	}
	if err != nil {
		return ocr.FailedResult(path, err.Error(), time.Since(start).Seconds())
	}

	var res ocr.Result
	if err := json.Unmarshal(payload, &res); err != nil {
		d.logger.Error("corrupt cache payload", "job_id", jobID, "key", key, "error", err)
		d.cache.Delete(key)
		return ocr.FailedResult(path, "cached result was unreadable", time.Since(start).Seconds())
	}
	res.ProcessingTime = time.Since(start).Seconds()
	return &res
}

// recognizeFile performs preprocess, recognition and layout reconstruction.
func (d *Dispatcher) recognizeFile(ctx context.Context, jobID, path string, preOpts ocr.PreprocessOpts, textOpts ocr.TextOpts) (*ocr.Result, error) {
	img := d.pre.Process(path, preOpts)

	words, lines, err := d.rec.Recognize(ctx, img)
	if err != nil {
		d.logger.Warn("recognition failed", "job_id", jobID, "path", path, "error", err)
		return nil, err
	}

	var text string
	if textOpts.UseAdvanced {
		text = layout.NewProcessor(textOpts.ReadingOrder).Reconstruct(words)
	} else {
		text = layout.SimpleJoin(words)
	}

	res := &ocr.Result{
		Text:        text,
		WordDetails: words,
		TextLines:   lines,
		FilePath:    path,
		Success:     true,
		Metadata: map[string]any{
			"preprocessing_options": preOpts,
		},
	}
	res.Finalize()
	return res, nil
}

// SubmitBatch runs OCR over multiple files. Results keep input order;
// per-file failures are reported inside the result and never fail the batch.
func (d *Dispatcher) SubmitBatch(ctx context.Context, paths []string, preOpts ocr.PreprocessOpts, textOpts ocr.TextOpts) *ocr.BatchResult {
	start := time.Now()
	out := &ocr.BatchResult{
		Results:   make([]ocr.Result, len(paths)),
		BatchSize: len(paths),
	}
	if len(paths) == 0 {
		return out
	}

	limit := min(d.cfg.BatchConcurrency, len(paths))
	sem := semaphore.NewWeighted(int64(limit))

	for i, path := range paths {
		// Missing files are rejected up front, without spending a worker slot.
		if _, err := os.Stat(path); err != nil {
			out.Results[i] = *ocr.FailedResult(path, "File not found", 0)
			continue
		}
		// Acquire outside the goroutine so a cancelled batch stops spawning.
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(paths); j++ {
				out.Results[j] = *ocr.FailedResult(paths[j], err.Error(), 0)
			}
			break
		}
		go func(i int, path string) {
			defer sem.Release(1)
			itemCtx, cancel := context.WithTimeout(ctx, d.cfg.BatchItemTimeout)
			defer cancel()

			jobID := uuid.NewString()
			var res *ocr.Result
			err := d.run(itemCtx, func() {
				res = d.processImage(itemCtx, jobID, path, preOpts, textOpts)
			})
			if err != nil {
				res = ocr.FailedResult(path, err.Error(), 0)
			}
			out.Results[i] = *res
		}(i, path)
	}

	// Draining the full semaphore weight waits for all workers.
	if err := sem.Acquire(context.Background(), int64(limit)); err == nil {
		sem.Release(int64(limit))
	}

	for i := range out.Results {
		if out.Results[i].Success {
			out.FilesProcessed++
		} else {
			out.FilesFailed++
		}
	}
	out.TotalProcessingTime = time.Since(start).Seconds()
	d.metrics.ObserveProcessingTime(out.TotalProcessingTime)
	jobDuration.WithLabelValues("batch").Observe(out.TotalProcessingTime)
	jobsTotal.WithLabelValues("batch", "success").Inc()
	return out
}

// SubmitVideo samples the video, OCRs each unique frame and aggregates the
// recognized texts. Per-frame failures are logged and skipped.
func (d *Dispatcher) SubmitVideo(ctx context.Context, path string, videoOpts ocr.VideoOpts, preOpts ocr.PreprocessOpts) *ocr.VideoResult {
	return d.SubmitVideoProgress(ctx, path, videoOpts, preOpts, nil)
}

// SubmitVideoProgress is SubmitVideo with a per-frame progress callback,
// invoked after each unique frame finishes OCR.
func (d *Dispatcher) SubmitVideoProgress(ctx context.Context, path string, videoOpts ocr.VideoOpts, preOpts ocr.PreprocessOpts, progress func(VideoProgress)) *ocr.VideoResult {
	start := time.Now()
	jobID := uuid.NewString()
	videoOpts.Normalize()
	textOpts := ocr.DefaultTextOpts()

	var texts []string
	var totalConfidence float64
	framesWithText := 0

	scanned, kept, err := d.sampler.Sample(ctx, path, videoOpts, func(framePath string, index int) error {
		frameCtx, cancel := context.WithTimeout(ctx, d.cfg.FrameTimeout)
		defer cancel()

		var res *ocr.Result
		runErr := d.run(frameCtx, func() {
			res = d.processImage(frameCtx, jobID, framePath, preOpts, textOpts)
		})
		if runErr != nil {
			// A cancelled parent context ends the job; a frame deadline only
			// skips the frame.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Warn("frame OCR timed out", "job_id", jobID, "frame", index)
			return nil
		}

		if res.Success && strings.TrimSpace(res.Text) != "" && res.Confidence >= videoOpts.MinConfidence {
			texts = append(texts, res.Text)
			totalConfidence += res.Confidence
			framesWithText++
		} else if !res.Success {
			d.logger.Warn("frame OCR failed", "job_id", jobID, "frame", index, "error", res.ErrorMessage)
		}
		if progress != nil {
			progress(VideoProgress{
				FrameIndex: index,
				Text:       res.Text,
				Confidence: res.Confidence,
				Success:    res.Success,
			})
		}
		return nil
	})

	elapsed := time.Since(start).Seconds()
	if err != nil {
		d.metrics.Inc("error_count", 1)
		jobsTotal.WithLabelValues("video", "error").Inc()
		return &ocr.VideoResult{
			ProcessingTime:     elapsed,
			FramesProcessed:    kept,
			FramesWithText:     framesWithText,
			UniqueTextSegments: len(texts),
			Success:            false,
			ErrorMessage:       err.Error(),
		}
	}

	unique := textdedup.Dedup(dedupExact(texts), d.cfg.DedupThreshold)

	var confidence float64
	if framesWithText > 0 {
		confidence = totalConfidence / float64(framesWithText)
	}

	d.metrics.ObserveProcessingTime(elapsed)
	d.metrics.Inc("videos_processed", 1)
	d.metrics.Inc("frames_processed_from_videos", float64(kept))
	jobDuration.WithLabelValues("video").Observe(elapsed)
	jobsTotal.WithLabelValues("video", "success").Inc()

	return &ocr.VideoResult{
		Text:               strings.Join(unique, "\n"),
		Confidence:         confidence,
		ProcessingTime:     elapsed,
		FramesProcessed:    kept,
		FramesWithText:     framesWithText,
		UniqueTextSegments: len(unique),
		Success:            true,
		Metadata: map[string]any{
			"frames_scanned": scanned,
		},
	}
}

// dedupExact removes exact duplicates preserving first occurrence.
func dedupExact(texts []string) []string {
	seen := make(map[string]struct{}, len(texts))
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
