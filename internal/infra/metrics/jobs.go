package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		lessonJobsTotal,
		lessonJobDuration,
		lessonRepairsTotal,
		lessonBatchDuration,
		lessonBatchJobs,
		contentItemsWritten,
		assetJobsQueued,
	)
}

var (
	lessonJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lesson_jobs_processed_total",
			Help:      "Generation jobs that reached a terminal status.",
		},
		[]string{"status", "failure_kind"},
	)

	lessonJobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lesson_job_duration_seconds",
			Help:      "Wall time from claim to terminal status.",
			Buckets:   []float64{1, 5, 10, 20, 40, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	lessonRepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lesson_repairs_total",
			Help:      "Repair calls issued for invalid generated lessons, by outcome.",
		},
		[]string{"result"}, // 'repaired', 'still_invalid'
	)

	lessonBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lesson_batch_duration_seconds",
			Help:      "Wall time of one RunBatch call.",
			Buckets:   []float64{1, 10, 30, 60, 120, 300, 600, 1200},
		},
	)

	lessonBatchJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lesson_batch_jobs_total",
			Help:      "Jobs handled by batches, by aggregate outcome.",
		},
		[]string{"outcome"}, // 'processed', 'ok', 'failed'
	)

	contentItemsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lesson_content_items_written_total",
			Help:      "Content items written for completed editions.",
		},
	)

	assetJobsQueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_jobs_queued_total",
			Help:      "Asset jobs queued, by the plan source that produced them.",
		},
		[]string{"source"},
	)
)

func IncLessonJob(status, failureKind string) {
	lessonJobsTotal.WithLabelValues(norm(status), norm(failureKind)).Inc()
}

func ObserveLessonJobDuration(status string, d time.Duration) {
	lessonJobDuration.WithLabelValues(norm(status)).Observe(d.Seconds())
}

// ObserveRepair is a no-op unless a repair call was made.
func ObserveRepair(repaired, valid bool) {
	if !repaired {
		return
	}
	result := "repaired"
	if !valid {
		result = "still_invalid"
	}
	lessonRepairsTotal.WithLabelValues(result).Inc()
}

func ObserveLessonBatch(d time.Duration, processed, ok, failed int) {
	lessonBatchDuration.Observe(d.Seconds())
	lessonBatchJobs.WithLabelValues("processed").Add(float64(processed))
	lessonBatchJobs.WithLabelValues("ok").Add(float64(ok))
	lessonBatchJobs.WithLabelValues("failed").Add(float64(failed))
}

func AddContentItems(n int) {
	contentItemsWritten.Add(float64(n))
}

func AddAssetJobs(source string, n int) {
	if n <= 0 {
		return
	}
	assetJobsQueued.WithLabelValues(norm(source)).Add(float64(n))
}
