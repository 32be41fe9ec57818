package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/quill-ocr/quill/internal/queue"
	"github.com/quill-ocr/quill/internal/server"
)

// workerCmd represents the worker command.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start a queue worker consuming scan tasks",
	Long: `Start a worker consuming scan processing tasks from Redis.

Workers run the same pipeline as the server. The serve command enqueues
one task per discovered scan when a Redis URI is configured; workers
process them, export the result documents, and deliver the completion
callbacks.

The worker blocks until it receives SIGTERM or SIGINT, then finishes
in-flight tasks before exiting.

Examples:
  quill worker --redis-uri redis://localhost:6379/0
  quill worker --redis-uri redis://localhost:6379/0 --concurrency 8`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		queueCfg := cfg.Queue
		if cmd.Flags().Changed("redis-uri") {
			queueCfg.RedisURI, _ = cmd.Flags().GetString("redis-uri")
		}
		if cmd.Flags().Changed("concurrency") {
			queueCfg.Concurrency, _ = cmd.Flags().GetInt("concurrency")
		}
		if queueCfg.RedisURI == "" {
			return errors.New("worker needs a Redis URI (--redis-uri or queue.redis_uri in config)")
		}

		pl, err := cfg.PipelineBuilder().Build()
		if err != nil {
			return fmt.Errorf("failed to build scan pipeline: %w", err)
		}

		notifier := server.NewCallbackClient(cfg.Server.Callback)
		worker, err := queue.NewWorker(queueCfg, pl, notifier)
		if err != nil {
			return fmt.Errorf("failed to initialize worker: %w", err)
		}

		slog.Info("Worker starting",
			"redis_uri", queueCfg.RedisURI,
			"concurrency", queueCfg.Concurrency)
		return worker.Run()
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().String("redis-uri", "", "Redis URI of the task queue")
	workerCmd.Flags().IntP("concurrency", "c", 0, "concurrent task handlers (default: from config)")
}
