package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quill-ocr/quill/internal/config"
	"github.com/quill-ocr/quill/internal/pipeline"
	"github.com/quill-ocr/quill/internal/storage"
)

// ScanProcessor runs one scan end to end. *pipeline.Pipeline
// implements it.
type ScanProcessor interface {
	ProcessScan(ctx context.Context, req pipeline.ScanRequest) (*pipeline.ProcessResult, error)
}

// Notifier is told about every successfully processed task whose
// payload carries a callback URL. The worker never retries
// notification failures; implementations handle their own retry.
type Notifier interface {
	NotifyProcessed(ctx context.Context, task ScanTask)
}

// Worker consumes scan tasks from Redis and runs them through a scan
// processor.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor ScanProcessor
	notifier  Notifier
	timeout   time.Duration
}

// NewWorker builds a worker from the queue configuration. notifier may
// be nil, which disables completion callbacks.
func NewWorker(cfg config.QueueConfig, proc ScanProcessor, notifier Notifier) (*Worker, error) {
	if proc == nil {
		return nil, errors.New("queue: worker needs a scan processor")
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURI)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}

	queues := cfg.Queues
	if len(queues) == 0 {
		queues = map[string]int{"default": 1}
	}

	w := &Worker{
		processor: proc,
		notifier:  notifier,
		timeout:   defaultTaskTimeout,
	}
	w.server = asynq.NewServer(opt, asynq.Config{
		Concurrency:    cfg.Concurrency,
		Queues:         queues,
		RetryDelayFunc: retryDelay,
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			slog.Error("Scan task failed", "type", task.Type(), "error", err)
		}),
	})
	w.mux = asynq.NewServeMux()
	w.mux.HandleFunc(TaskTypeScanProcess, w.handleScanProcess)
	return w, nil
}

// Run consumes tasks until Shutdown is called.
func (w *Worker) Run() error {
	slog.Info("Queue worker starting")
	if err := w.server.Run(w.mux); err != nil {
		return fmt.Errorf("queue worker: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight tasks and stops the worker.
func (w *Worker) Shutdown() {
	slog.Info("Queue worker stopping")
	w.server.Shutdown()
}

// retryDelay backs a failed task off 5s, 10s, 20s and so on, capped at
// two minutes.
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	delay := time.Duration(5<<uint(n)) * time.Second //nolint:gosec // G115: n is a small retry count
	if delay > 2*time.Minute {
		delay = 2 * time.Minute
	}
	return delay
}

func (w *Worker) handleScanProcess(ctx context.Context, task *asynq.Task) error {
	var st ScanTask
	if err := json.Unmarshal(task.Payload(), &st); err != nil {
		// A payload that never decoded will never decode; drop it.
		return fmt.Errorf("decode scan task: %v: %w", err, asynq.SkipRetry)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	res, err := w.processor.ProcessScan(ctx, pipeline.ScanRequest{
		ScanID:    st.ScanID,
		ImagePath: st.ImagePath,
		XMLPath:   st.XMLPath,
	})
	if err != nil {
		tasksConsumed.WithLabelValues("error").Inc()
		return fmt.Errorf("process scan %q: %w", st.ScanID, err)
	}

	if st.DestinationDir != "" {
		if err := os.MkdirAll(st.DestinationDir, 0o750); err != nil {
			tasksConsumed.WithLabelValues("error").Inc()
			return fmt.Errorf("create destination %q: %w", st.DestinationDir, err)
		}
		dst := filepath.Join(st.DestinationDir, res.Document.Scan.ID+"_result.json")
		if err := storage.WriteResultFile(dst, res.Document); err != nil {
			tasksConsumed.WithLabelValues("error").Inc()
			return err
		}
	}

	slog.Info("Queued scan processed",
		"scan_id", res.Document.Scan.ID,
		"regions", len(res.Document.Regions),
		"duration_ms", time.Since(start).Milliseconds())
	tasksConsumed.WithLabelValues("ok").Inc()

	if w.notifier != nil && st.Callback != "" {
		// The task context may already be exhausted; the callback gets
		// its own lifetime.
		w.notifier.NotifyProcessed(context.WithoutCancel(ctx), st)
	}
	return nil
}
