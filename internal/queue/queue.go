// Package queue distributes scan processing over Redis using asynq.
// The HTTP server enqueues one task per discovered scan and `quill
// worker` instances consume them, so OCR-heavy work can run on hosts
// other than the one accepting requests.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quill-ocr/quill/internal/config"
)

// TaskTypeScanProcess is the asynq task type for processing one scan.
const TaskTypeScanProcess = "scan:process"

const defaultTaskTimeout = 5 * time.Minute

// ScanTask is the JSON payload of a scan:process task. Paths must be
// reachable from the worker host.
type ScanTask struct {
	ScanID    string `json:"scan_id,omitempty"`
	ImagePath string `json:"image_path"`
	XMLPath   string `json:"xml_path"`

	// DestinationDir receives a copy of the result JSON when set.
	DestinationDir string `json:"destination_dir,omitempty"`

	// GroupID and Callback carry the completion-callback context for
	// tasks enqueued by the server's asynchronous ingest flow.
	GroupID  string `json:"group_id,omitempty"`
	Callback string `json:"callback,omitempty"`
}

// NewScanTask packs a ScanTask into an asynq task.
func NewScanTask(t ScanTask) (*asynq.Task, error) {
	if t.ImagePath == "" {
		return nil, errors.New("queue: scan task needs an image path")
	}
	if t.XMLPath == "" {
		return nil, errors.New("queue: scan task needs a layout xml path")
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode scan task: %w", err)
	}
	return asynq.NewTask(TaskTypeScanProcess, payload), nil
}

// Enqueuer submits scan tasks to Redis.
type Enqueuer struct {
	client   *asynq.Client
	maxRetry int
}

// NewEnqueuer connects an enqueuer to the Redis instance named by the
// queue configuration. The connection is lazy; a bad URI fails here,
// an unreachable Redis fails on the first enqueue.
func NewEnqueuer(cfg config.QueueConfig) (*Enqueuer, error) {
	opt, err := asynq.ParseRedisURI(cfg.RedisURI)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}
	return &Enqueuer{
		client:   asynq.NewClient(opt),
		maxRetry: cfg.MaxRetry,
	}, nil
}

// EnqueueScan submits one scan task and returns its queue-assigned ID.
func (e *Enqueuer) EnqueueScan(ctx context.Context, t ScanTask) (string, error) {
	task, err := NewScanTask(t)
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(e.maxRetry),
		asynq.Timeout(defaultTaskTimeout))
	if err != nil {
		return "", fmt.Errorf("enqueue scan %q: %w", t.ScanID, err)
	}
	slog.Info("Scan task enqueued",
		"task_id", info.ID,
		"queue", info.Queue,
		"scan_id", t.ScanID)
	tasksEnqueued.Inc()
	return info.ID, nil
}

// Close releases the Redis connection.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
