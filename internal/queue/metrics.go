package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quill_queue_tasks_enqueued_total",
			Help: "Total number of scan tasks submitted to the queue",
		},
	)

	tasksConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_queue_tasks_consumed_total",
			Help: "Total number of scan tasks consumed by workers",
		},
		[]string{"status"}, // status: ok, error
	)
)
