package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 提取服务调用延迟（毫秒）
	ExtractionCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extraction_call_latency_ms",
			Help:    "Speech extraction service call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"status"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 提醒 tick 执行时长（秒）
	ReminderTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reminder_tick_duration_seconds",
			Help:    "Reminder engine tick duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	// 提醒触发计数
	ReminderFiredCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_fired_count",
			Help: "Total number of reminder slots fired",
		},
		[]string{"slot", "status"}, // status: delivered, failed, skipped
	)

	// 任务创建计数
	TaskCreatedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_created_count",
			Help: "Total number of tasks created",
		},
		[]string{"source"}, // source: voice
	)

	// 语音捕获处理计数
	CaptureCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_count",
			Help: "Total number of voice captures processed",
		},
		[]string{"status"}, // status: success, failed, busy
	)
)

// RecordExtractionCallLatency 记录提取服务调用延迟
func RecordExtractionCallLatency(status string, duration time.Duration) {
	ExtractionCallLatency.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordReminderTick 记录一次提醒 tick 的执行时长
func RecordReminderTick(duration time.Duration) {
	ReminderTickDuration.Observe(duration.Seconds())
}

// IncrementReminderFired 增加提醒触发计数
func IncrementReminderFired(slot, status string) {
	ReminderFiredCount.WithLabelValues(slot, status).Inc()
}

// IncrementTaskCreated 增加任务创建计数
func IncrementTaskCreated(source string) {
	TaskCreatedCount.WithLabelValues(source).Inc()
}

// IncrementCapture 增加语音捕获计数
func IncrementCapture(status string) {
	CaptureCount.WithLabelValues(status).Inc()
}
