package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_autocrop_jobs_processed_total",
		Help: "Total number of crop jobs processed, by status",
	}, []string{"status"})

	JobProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fiapx_autocrop_stage_duration_seconds",
		Help:    "Duration of each autocrop pipeline stage",
		Buckets: []float64{0.1, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fiapx_autocrop_frames_sampled_total",
		Help: "Total number of frames sampled across all jobs",
	})

	DetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_autocrop_detections_total",
		Help: "Per-frame pose detection outcomes",
	}, []string{"result"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_autocrop_active_workers",
		Help: "Number of currently active workers processing jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_autocrop_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
