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

	"github.com/spf13/cobra"

	"github.com/quill-ocr/quill/internal/queue"
	"github.com/quill-ocr/quill/internal/server"
	"github.com/quill-ocr/quill/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP scan processing server",
	Long: `Start an HTTP server exposing the scan pipeline.

The server provides the following endpoints:
  POST  /process                    - Process an uploaded scan (multipart image + xml)
  GET   /process                    - Asynchronous directory ingest (source/dst/callback)
  GET   /results/{scan_id}          - Fetch a stored result document
  PUT   /results/{scan_id}          - Replace a stored result document
  GET   /results/{scan_id}/status   - Fetch the review status of a scan
  PATCH /results/{scan_id}/status   - Update the review status of a scan
  GET   /ws                         - WebSocket progress stream
  GET   /health                     - Health check endpoint
  GET   /metrics                    - Prometheus metrics

A storage directory is required; it backs the stored-result endpoints
and receives input copies and line crops.

Examples:
  quill serve --storage-dir ./quill-data
  quill serve --storage-dir ./quill-data --port 8080
  quill serve --storage-dir ./quill-data --redis-uri redis://localhost:6379/0`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}

		maxUploadSize := cfg.Server.MaxUploadMB
		if cmd.Flags().Changed("max-upload-size") {
			maxUploadSize, _ = cmd.Flags().GetInt("max-upload-size")
		}

		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}

		rateLimit := cfg.Server.RateLimitPerMin
		if cmd.Flags().Changed("rate-limit") {
			rateLimit, _ = cmd.Flags().GetInt("rate-limit")
		}

		redisURI := cfg.Queue.RedisURI
		if cmd.Flags().Changed("redis-uri") {
			redisURI, _ = cmd.Flags().GetString("redis-uri")
		}

		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}
		if cfg.StorageDir == "" {
			return errors.New("serve needs a storage directory (--storage-dir or storage_dir in config)")
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		pl, err := cfg.PipelineBuilder().Build()
		if err != nil {
			return fmt.Errorf("failed to build scan pipeline: %w", err)
		}

		var enqueuer *queue.Enqueuer
		if redisURI != "" {
			queueCfg := cfg.Queue
			queueCfg.RedisURI = redisURI
			enqueuer, err = queue.NewEnqueuer(queueCfg)
			if err != nil {
				return fmt.Errorf("failed to connect task queue: %w", err)
			}
			defer func() { _ = enqueuer.Close() }()
			slog.Info("Task queue enabled", "redis_uri", redisURI)
		}

		serverConfig := server.Config{
			Host:            host,
			Port:            port,
			CORSOrigin:      corsOrigin,
			MaxUploadMB:     int64(maxUploadSize),
			TimeoutSec:      timeout,
			RateLimitPerMin: rateLimit,
			Callback:        cfg.Server.Callback,
			Pipeline:        pl,
			Store:           pl.Store(),
			Enqueuer:        enqueuer,
			Version:         version.Version,
		}

		scanServer, err := server.NewServer(serverConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		defer func() { _ = scanServer.Close() }()

		mux := http.NewServeMux()
		scanServer.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(timeout) * time.Second,
			WriteTimeout:      time.Duration(timeout) * time.Second,
		}

		go func() {
			slog.Info("Starting scan server", "host", host, "port", port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		slog.Info("Shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		slog.Info("Cleaning up server resources")
		if err := scanServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 120, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("rate-limit", 120, "maximum requests per minute per client (0 disables)")
	serveCmd.Flags().String("redis-uri", "", "Redis URI enabling the task queue for async ingest")
}
