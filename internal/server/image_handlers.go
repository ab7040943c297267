package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/quillscan/quillscan/internal/ocr"
)

// ocrImageHandler processes single-image recognition requests. It accepts a
// multipart upload ("file" part or "file_path" field) or a JSON body with
// file_path and option objects.
func (s *Server) ocrImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	preOpts := ocr.DefaultPreprocessOpts()
	textOpts := ocr.DefaultTextOpts()

	var path string
	var cleanup func()

	if isMultipart(r) {
		p, c, herr := s.resolveRequestFile(w, r)
		if herr != nil {
			s.writeErrorResponse(w, herr.message, herr.status)
			return
		}
		path, cleanup = p, c
		if herr := formOptions(r, "preprocessing_options", &preOpts); herr != nil {
			if cleanup != nil {
				cleanup()
			}
			s.writeErrorResponse(w, herr.message, herr.status)
			return
		}
		if herr := formOptions(r, "text_processing_options", &textOpts); herr != nil {
			if cleanup != nil {
				cleanup()
			}
			s.writeErrorResponse(w, herr.message, herr.status)
			return
		}
	} else {
		var req imageRequest
		if herr := decodeJSONBody(r, &req); herr != nil {
			s.writeErrorResponse(w, herr.message, herr.status)
			return
		}
		if req.FilePath == "" {
			s.writeErrorResponse(w, "file_path is required", http.StatusBadRequest)
			return
		}
		if herr := s.checkLocalFile(req.FilePath); herr != nil {
			s.writeErrorResponse(w, herr.message, herr.status)
			return
		}
		path = req.FilePath
		if req.Preprocessing != nil {
			preOpts = *req.Preprocessing
		}
		if req.TextProc != nil {
			textOpts = *req.TextProc
		}
	}
	if cleanup != nil {
		defer cleanup()
	}

	if !ocr.IsImagePath(path) {
		s.writeErrorResponse(w, fmt.Sprintf("unsupported file format: %s", path), http.StatusBadRequest)
		return
	}

	s.writeJSON(w, http.StatusOK, s.dispatcher.SubmitImage(r.Context(), path, preOpts, textOpts))
}

// ocrBatchHandler processes a batch of file paths. Per-file failures are
// reported inside the 200 response, never as an HTTP error.
func (s *Server) ocrBatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req batchRequest
	if herr := decodeJSONBody(r, &req); herr != nil {
		s.writeErrorResponse(w, herr.message, herr.status)
		return
	}
	if len(req.FilePaths) == 0 {
		s.writeErrorResponse(w, "file_paths is required", http.StatusBadRequest)
		return
	}
	if len(req.FilePaths) > s.maxBatchSize {
		s.writeErrorResponse(w, fmt.Sprintf("batch size %d exceeds limit %d", len(req.FilePaths), s.maxBatchSize), http.StatusBadRequest)
		return
	}

	preOpts := ocr.DefaultPreprocessOpts()
	textOpts := ocr.DefaultTextOpts()
	if req.Preprocessing != nil {
		preOpts = *req.Preprocessing
	}
	if req.TextProc != nil {
		textOpts = *req.TextProc
	}

	s.writeJSON(w, http.StatusOK, s.dispatcher.SubmitBatch(r.Context(), req.FilePaths, preOpts, textOpts))
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
