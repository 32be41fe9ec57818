package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_scans_processed_total",
			Help: "Total number of processed scans",
		},
		[]string{"status"}, // status: ok, error
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quill_scan_processing_duration_seconds",
			Help:    "End-to-end scan processing duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
	)

	regionsPerScan = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quill_scan_regions",
			Help:    "Number of layout regions per scan",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	regionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quill_region_failures_total",
			Help: "Total number of regions replaced by error markers",
		},
	)

	linesRecognized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quill_lines_recognized_total",
			Help: "Total number of lines sent through the OCR engine",
		},
	)
)
