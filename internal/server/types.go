// Package server exposes the recognition service over HTTP: multipart or
// JSON requests in, structured result JSON out, with a websocket variant
// for streaming video progress.
package server

import (
	"context"
	"net/http"

	"github.com/quillscan/quillscan/internal/cache"
	"github.com/quillscan/quillscan/internal/config"
	"github.com/quillscan/quillscan/internal/document"
	"github.com/quillscan/quillscan/internal/ocr"
	"github.com/quillscan/quillscan/internal/pipeline"
)

// dispatcherInterface defines the methods the server needs from the job
// dispatcher.
type dispatcherInterface interface {
	SubmitImage(ctx context.Context, path string, preOpts ocr.PreprocessOpts, textOpts ocr.TextOpts) *ocr.Result
	SubmitBatch(ctx context.Context, paths []string, preOpts ocr.PreprocessOpts, textOpts ocr.TextOpts) *ocr.BatchResult
	SubmitVideo(ctx context.Context, path string, videoOpts ocr.VideoOpts, preOpts ocr.PreprocessOpts) *ocr.VideoResult
	SubmitVideoProgress(ctx context.Context, path string, videoOpts ocr.VideoOpts, preOpts ocr.PreprocessOpts, progress func(pipeline.VideoProgress)) *ocr.VideoResult
	Metrics() *pipeline.Metrics
	CacheStats() cache.Stats
	RecognizerStatus() string
}

// documentInterface defines the methods the server needs from the document
// extraction registry.
type documentInterface interface {
	Extract(path string) *ocr.DocumentResult
	Extensions() []string
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	dispatcher     dispatcherInterface
	documents      documentInterface
	corsOrigin     string
	maxUploadBytes int64
	maxBatchSize   int
	videoDefaults  ocr.VideoOpts
}

// NewServer creates a server around an already constructed dispatcher.
func NewServer(cfg *config.Config, d *pipeline.Dispatcher) *Server {
	return &Server{
		dispatcher:     d,
		documents:      document.NewRegistry(),
		corsOrigin:     cfg.Server.CORSOrigin,
		maxUploadBytes: cfg.MaxUploadBytes(),
		maxBatchSize:   cfg.Server.MaxBatchSize,
		videoDefaults:  cfg.ToVideoOpts(),
	}
}

// Request body types for the JSON endpoints.

type imageRequest struct {
	FilePath      string              `json:"file_path"`
	Preprocessing *ocr.PreprocessOpts `json:"preprocessing_options,omitempty"`
	TextProc      *ocr.TextOpts       `json:"text_processing_options,omitempty"`
}

type batchRequest struct {
	FilePaths     []string            `json:"file_paths"`
	Preprocessing *ocr.PreprocessOpts `json:"preprocessing_options,omitempty"`
	TextProc      *ocr.TextOpts       `json:"text_processing_options,omitempty"`
}

type videoRequest struct {
	FilePath      string              `json:"file_path"`
	VideoOptions  *ocr.VideoOpts      `json:"video_options,omitempty"`
	Preprocessing *ocr.PreprocessOpts `json:"preprocessing_options,omitempty"`
}

type documentRequest struct {
	FilePath string `json:"file_path"`
}

// Response types for the informational endpoints.

type HealthResponse struct {
	Status    string `json:"status"`
	OCRStatus string `json:"ocr_status"`
	Time      string `json:"time"`
}

type SupportedFormatsResponse struct {
	Images    []string `json:"images"`
	Videos    []string `json:"videos"`
	Documents []string `json:"documents"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.wrap(s.healthHandler))
	mux.HandleFunc("/metrics", s.wrap(s.metricsHandler))
	mux.Handle("/metrics/prometheus", s.prometheusHandler())
	mux.HandleFunc("/supported_formats", s.wrap(s.supportedFormatsHandler))
	mux.HandleFunc("/ocr/image", s.wrap(s.ocrImageHandler))
	mux.HandleFunc("/ocr/batch", s.wrap(s.ocrBatchHandler))
	mux.HandleFunc("/ocr/video", s.wrap(s.ocrVideoHandler))
	mux.HandleFunc("/ocr/video/ws", s.wrap(s.ocrVideoWebSocketHandler))
	mux.HandleFunc("/extract/document", s.wrap(s.extractDocumentHandler))
}

// wrap applies the standard middleware chain.
func (s *Server) wrap(h http.HandlerFunc) http.HandlerFunc {
	return s.corsMiddleware(s.recoveryMiddleware(h))
}
