// Package document extracts plain text from document files. Extraction is
// adapter-based: each supported extension registers an extractor, and the
// registry turns any adapter failure into a structured result.
package document

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/quillscan/quillscan/internal/ocr"
)

// Extractor pulls plain text out of a file of one format. Metadata values
// are format-specific extras (page counts and the like).
type Extractor interface {
	Extract(path string) (text string, metadata map[string]any, err error)
}

// Registry maps file extensions to extractors.
type Registry struct {
	extractors map[string]Extractor
	logger     *slog.Logger
}

// NewRegistry returns a registry with all built-in adapters registered.
func NewRegistry() *Registry {
	r := &Registry{
		extractors: make(map[string]Extractor),
		logger:     slog.Default(),
	}
	r.Register(".txt", textExtractor{})
	r.Register(".pdf", pdfExtractor{})
	r.Register(".docx", docxExtractor{})
	r.Register(".rtf", rtfExtractor{})
	return r
}

// Register adds or replaces the extractor for an extension.
func (r *Registry) Register(ext string, e Extractor) {
	r.extractors[strings.ToLower(ext)] = e
}

// Extensions lists the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract runs the matching adapter and never returns an error: adapter
// failures are reported inside the result.
func (r *Registry) Extract(path string) *ocr.DocumentResult {
	start := time.Now()
	ext := strings.ToLower(filepath.Ext(path))
	fileType := strings.TrimPrefix(ext, ".")

	result := &ocr.DocumentResult{
		FilePath: path,
		FileType: fileType,
	}

	extractor, ok := r.extractors[ext]
	if !ok {
		result.ProcessingTime = time.Since(start).Seconds()
		result.ErrorMessage = fmt.Sprintf("unsupported file format: %s", fileType)
		return result
	}

	text, metadata, err := extractor.Extract(path)
	result.ProcessingTime = time.Since(start).Seconds()
	if err != nil {
		r.logger.Error("document extraction failed", "path", path, "error", err)
		result.ErrorMessage = err.Error()
		return result
	}

	result.Text = text
	result.Metadata = metadata
	result.Success = true
	return result
}
