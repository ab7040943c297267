package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quillscan/quillscan/internal/ocr"
)

// httpError carries a status code alongside the user-facing message.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func errBadRequest(format string, args ...any) *httpError {
	return &httpError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		OCRStatus: s.dispatcher.RecognizerStatus(),
		Time:      time.Now().UTC().Format(time.RFC3339),
	})
}

// metricsHandler returns the JSON metrics snapshot plus cache counters.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.dispatcher.Metrics().Snapshot()
	stats := s.dispatcher.CacheStats()
	snap["cache"] = map[string]any{
		"size":      stats.Size,
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"evictions": stats.Evictions,
		"expired":   stats.Expired,
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// prometheusHandler exposes the prometheus text exposition format.
func (s *Server) prometheusHandler() http.Handler {
	return promhttp.Handler()
}

// supportedFormatsHandler lists the accepted file extensions per media kind.
func (s *Server) supportedFormatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, SupportedFormatsResponse{
		Images:    ocr.ImageExtensions,
		Videos:    ocr.VideoExtensions,
		Documents: s.documents.Extensions(),
	})
}

// extractDocumentHandler delegates to the document extraction registry.
func (s *Server) extractDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req documentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeErrorResponse(w, err.message, err.status)
		return
	}
	if req.FilePath == "" {
		s.writeErrorResponse(w, "file_path is required", http.StatusBadRequest)
		return
	}

	ext := strings.ToLower(filepath.Ext(req.FilePath))
	supported := false
	for _, e := range s.documents.Extensions() {
		if e == ext {
			supported = true
			break
		}
	}
	if !supported {
		s.writeErrorResponse(w, fmt.Sprintf("unsupported file format: %s", strings.TrimPrefix(ext, ".")), http.StatusBadRequest)
		return
	}
	if err := s.checkLocalFile(req.FilePath); err != nil {
		s.writeErrorResponse(w, err.message, err.status)
		return
	}

	s.writeJSON(w, http.StatusOK, s.documents.Extract(req.FilePath))
}

// decodeJSONBody decodes the request body into v, rejecting malformed JSON.
func decodeJSONBody(r *http.Request, v any) *httpError {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errBadRequest("invalid JSON body: %v", err)
	}
	return nil
}

// checkLocalFile verifies a file_path reference exists and fits the upload
// size limit.
func (s *Server) checkLocalFile(path string) *httpError {
	info, err := os.Stat(path)
	if err != nil {
		return &httpError{status: http.StatusNotFound, message: fmt.Sprintf("file not found: %s", path)}
	}
	if info.Size() > s.maxUploadBytes {
		return &httpError{status: http.StatusRequestEntityTooLarge, message: "File too large"}
	}
	return nil
}

// spoolUpload writes an uploaded file to a temp path keeping the original
// extension, so downstream format checks still work. The caller removes the
// file via cleanup.
func spoolUpload(file multipart.File, filename string) (string, func(), *httpError) {
	ext := strings.ToLower(filepath.Ext(filename))
	tmp, err := os.CreateTemp("", "upload_*"+ext)
	if err != nil {
		return "", nil, &httpError{status: http.StatusInternalServerError, message: "Failed to store upload"}
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", nil, &httpError{status: http.StatusInternalServerError, message: "Failed to store upload"}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, &httpError{status: http.StatusInternalServerError, message: "Failed to store upload"}
	}
	return tmp.Name(), cleanup, nil
}

// resolveRequestFile extracts the input file for a multipart request:
// either an uploaded "file" part spooled to disk, or a "file_path" form
// field referencing a local file. cleanup is non-nil only for uploads.
func (s *Server) resolveRequestFile(w http.ResponseWriter, r *http.Request) (string, func(), *httpError) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		return "", nil, errBadRequest("failed to parse form data: %v", err)
	}

	file, header, err := r.FormFile("file")
	if err == nil {
		defer func() { _ = file.Close() }()
		if header.Size > s.maxUploadBytes {
			return "", nil, &httpError{status: http.StatusRequestEntityTooLarge, message: "File too large"}
		}
		uploadSizeBytes.Observe(float64(header.Size))
		return spoolUpload(file, header.Filename)
	}

	if path := r.FormValue("file_path"); path != "" {
		if herr := s.checkLocalFile(path); herr != nil {
			return "", nil, herr
		}
		return path, nil, nil
	}

	return "", nil, errBadRequest("no file or file_path provided")
}

// formOptions decodes a JSON-encoded options form field into v. An absent
// field leaves v untouched.
func formOptions(r *http.Request, field string, v any) *httpError {
	raw := r.FormValue(field)
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return errBadRequest("invalid %s: %v", field, err)
	}
	return nil
}
