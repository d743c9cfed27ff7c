// Package metrics 提供 Prometheus 指标集合，包含刷新流水线与 HTTP 两类指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标集合，使用独立的 Registry，避免重复注册到全局
type Metrics struct {
	registry *prometheus.Registry

	// 刷新次数，按结果状态分类
	RefreshRunsTotal *prometheus.CounterVec
	// 单次刷新耗时
	RefreshDuration prometheus.Histogram
	// 抓取到的有效条目数
	FetchedEntriesTotal prometheus.Counter
	// 被跳过的条目数
	SkippedItemsTotal prometheus.Counter
	// 写入条目数，op=insert|update
	UpsertedEntriesTotal *prometheus.CounterVec

	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec
}

// New 创建并注册指标
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RefreshRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_runs_total",
			Help:      "Total refresh runs by status",
		}, []string{"status"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Refresh run duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FetchedEntriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetched_entries_total",
			Help:      "Total entries fetched from the remote source",
		}),
		SkippedItemsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_items_total",
			Help:      "Total source items skipped during normalization",
		}),
		UpsertedEntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upserted_entries_total",
			Help:      "Total entries written to the store by operation",
		}, []string{"op"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RefreshRunsTotal,
		m.RefreshDuration,
		m.FetchedEntriesTotal,
		m.SkippedItemsTotal,
		m.UpsertedEntriesTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// Handler 返回 /metrics 的 HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRefresh 记录一次刷新
func (m *Metrics) RecordRefresh(status string, duration time.Duration, fetched, skipped, inserted, updated int) {
	m.RefreshRunsTotal.WithLabelValues(status).Inc()
	m.RefreshDuration.Observe(duration.Seconds())
	m.FetchedEntriesTotal.Add(float64(fetched))
	m.SkippedItemsTotal.Add(float64(skipped))
	m.UpsertedEntriesTotal.WithLabelValues("insert").Add(float64(inserted))
	m.UpsertedEntriesTotal.WithLabelValues("update").Add(float64(updated))
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
