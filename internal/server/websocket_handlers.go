package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quillscan/quillscan/internal/ocr"
	"github.com/quillscan/quillscan/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin enforcement is handled by the CORS configuration.
		return true
	},
}

// wsMessage is the envelope for all messages sent to the client.
type wsMessage struct {
	Type    string `json:"type"` // "progress", "result" or "error"
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ocrVideoWebSocketHandler streams per-frame progress while a video job
// runs, then sends the final aggregate result and closes.
func (s *Server) ocrVideoWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

	var req videoRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(wsMessage{Type: "error", Error: "invalid request: " + err.Error()})
		return
	}
	if req.FilePath == "" {
		_ = conn.WriteJSON(wsMessage{Type: "error", Error: "file_path is required"})
		return
	}
	if !ocr.IsVideoPath(req.FilePath) {
		_ = conn.WriteJSON(wsMessage{Type: "error", Error: "unsupported file format: " + req.FilePath})
		return
	}
	if herr := s.checkLocalFile(req.FilePath); herr != nil {
		_ = conn.WriteJSON(wsMessage{Type: "error", Error: herr.message})
		return
	}

	videoOpts := s.videoDefaults
	if req.VideoOptions != nil {
		videoOpts = *req.VideoOptions
	}
	preOpts := ocr.DefaultPreprocessOpts()
	if req.Preprocessing != nil {
		preOpts = *req.Preprocessing
	}

	// Frame results arrive from dispatcher worker goroutines; the websocket
	// writer must not be shared, so progress is funneled through a channel.
	progressCh := make(chan pipeline.VideoProgress, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progressCh {
			if err := conn.WriteJSON(wsMessage{Type: "progress", Payload: p}); err != nil {
				slog.Debug("websocket progress write failed", "error", err)
				return
			}
		}
	}()

	result := s.dispatcher.SubmitVideoProgress(r.Context(), req.FilePath, videoOpts, preOpts, func(p pipeline.VideoProgress) {
		select {
		case progressCh <- p:
		default:
			// Slow client, drop the progress event rather than stall the job.
		}
	})
	close(progressCh)
	<-done

	if err := conn.WriteJSON(wsMessage{Type: "result", Payload: result}); err != nil {
		slog.Debug("websocket result write failed", "error", err)
	}
}
