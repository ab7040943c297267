package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quillscan/quillscan/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP recognition API",
	Long: `Start an HTTP server that provides REST API endpoints for text
recognition and document extraction.

Endpoints:
  POST /ocr/image          - Process a single image
  POST /ocr/batch          - Process a batch of file paths
  POST /ocr/video          - Process a video with frame sampling
  GET  /ocr/video/ws       - Websocket variant streaming per-frame progress
  POST /extract/document   - Extract text from PDF, DOCX, RTF or TXT
  GET  /health             - Health and engine status
  GET  /metrics            - JSON metrics snapshot
  GET  /metrics/prometheus - Prometheus exposition format
  GET  /supported_formats  - Accepted file extensions

Examples:
  quillscan serve
  quillscan serve --port 8080
  quillscan serve --host 127.0.0.1 --port 3000`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}
		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}

		dispatcher, cleanup := buildDispatcher(cfg)
		defer cleanup()

		// Load the engine in the background so /health reports ready without
		// waiting for the first recognition request. Failures are logged by
		// the adapter and surface again on each request.
		go func() { _ = dispatcher.WarmUp() }()

		srv := server.NewServer(cfg, dispatcher)
		mux := http.NewServeMux()
		srv.SetupRoutes(mux)

		timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       timeout,
			WriteTimeout:      timeout,
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		go func() {
			slog.Info("starting recognition server", "host", host, "port", port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigChan:
			slog.Info("received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
			return err
		}
		slog.Info("server shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "host address to bind to")
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on")
}
