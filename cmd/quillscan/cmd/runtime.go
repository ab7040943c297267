package cmd

import (
	"encoding/json"
	"io"

	"github.com/quillscan/quillscan/internal/cache"
	"github.com/quillscan/quillscan/internal/config"
	"github.com/quillscan/quillscan/internal/pipeline"
	"github.com/quillscan/quillscan/internal/preprocess"
	"github.com/quillscan/quillscan/internal/recognizer"
	"github.com/quillscan/quillscan/internal/video"
)

// buildDispatcher assembles the processing stack from configuration. One-shot
// commands let the engine load on first use; serve warms it up at startup.
// cleanup releases the worker pool and the engine.
func buildDispatcher(cfg *config.Config) (*pipeline.Dispatcher, func()) {
	engine := recognizer.NewONNXEngine(cfg.ToRecognizerConfig())
	adapter := recognizer.NewAdapter(engine)

	d := pipeline.New(
		cfg.ToDispatcherConfig(),
		adapter,
		cache.New(cfg.ToCacheConfig()),
		preprocess.NewPipeline(),
		video.NewSamplerWithFFmpeg(cfg.Video.FFmpegPath),
		pipeline.NewMetrics(),
	)

	cleanup := func() {
		d.Close()
		_ = adapter.Close()
	}
	return d, cleanup
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
