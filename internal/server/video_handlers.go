package server

import (
	"fmt"
	"net/http"

	"github.com/quillscan/quillscan/internal/ocr"
)

// ocrVideoHandler processes video recognition requests. Accepts a multipart
// upload or a JSON body with file_path; video options default from config.
func (s *Server) ocrVideoHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	videoOpts := s.videoDefaults
	preOpts := ocr.DefaultPreprocessOpts()

	var path string
	var cleanup func()

	if isMultipart(r) {
		p, c, herr := s.resolveRequestFile(w, r)
		if herr != nil {
			s.writeErrorResponse(w, herr.message, herr.status)
			return
		}
		path, cleanup = p, c
		if herr := formOptions(r, "video_options", &videoOpts); herr != nil {
			if cleanup != nil {
				cleanup()
			}
			s.writeErrorResponse(w, herr.message, herr.status)
			return
		}
		if herr := formOptions(r, "preprocessing_options", &preOpts); herr != nil {
			if cleanup != nil {
				cleanup()
			}
			s.writeErrorResponse(w, herr.message, herr.status)
			return
		}
	} else {
		var req videoRequest
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
		if req.VideoOptions != nil {
			videoOpts = *req.VideoOptions
		}
		if req.Preprocessing != nil {
			preOpts = *req.Preprocessing
		}
	}
	if cleanup != nil {
		defer cleanup()
	}

	if !ocr.IsVideoPath(path) {
		s.writeErrorResponse(w, fmt.Sprintf("unsupported file format: %s", path), http.StatusBadRequest)
		return
	}

	s.writeJSON(w, http.StatusOK, s.dispatcher.SubmitVideo(r.Context(), path, videoOpts, preOpts))
}
