package prometheus

import (
	"context"
	"strconv"
	"time"
)

// AppMetrics holds every application metric, grouped by layer.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Analysis pipeline
	AnalysesTotal       CounterVec
	AnalysisDuration    HistogramVec
	AnalysisResultCount HistogramVec
	AnalysisAlertsTotal CounterVec
	FlaggedReportsTotal CounterVec

	// Infrastructure
	DBQueryDuration  HistogramVec
	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec

	// Messaging
	MessagesPublishedTotal CounterVec
	MessagesConsumedTotal  CounterVec
	MessageProcessDuration HistogramVec

	// System health
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultDBDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultResultCountBuckets  = []float64{0, 1, 2, 5, 10, 20, 50, 100}
)

// NewAppMetrics registers the full metric set against the collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	m.AnalysesTotal = collector.RegisterCounter("analyses_total", "Completed report analyses", "source", "status")
	m.AnalysisDuration = collector.RegisterHistogram("analysis_duration_seconds", "Report analysis duration", DefaultHTTPDurationBuckets, "source")
	m.AnalysisResultCount = collector.RegisterHistogram("analysis_result_count", "Lab results per analysis", DefaultResultCountBuckets, "source")
	m.AnalysisAlertsTotal = collector.RegisterCounter("analysis_alerts_total", "Alerts raised by analyses", "source")
	m.FlaggedReportsTotal = collector.RegisterCounter("flagged_reports_total", "Analyses with at least one flagged result", "source")

	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")

	m.MessagesPublishedTotal = collector.RegisterCounter("messages_published_total", "Messages published", "topic", "status")
	m.MessagesConsumedTotal = collector.RegisterCounter("messages_consumed_total", "Messages consumed", "topic", "status")
	m.MessageProcessDuration = collector.RegisterHistogram("message_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "topic")

	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "code")

	return m
}

// RecordHTTPRequest updates the HTTP layer metrics for one completed request.
func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAnalysis updates the pipeline metrics for one completed analysis.
func RecordAnalysis(m *AppMetrics, source string, resultCount, alertCount int, flagged bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(source, "ok").Inc()
	m.AnalysisDuration.WithLabelValues(source).Observe(duration.Seconds())
	m.AnalysisResultCount.WithLabelValues(source).Observe(float64(resultCount))
	m.AnalysisAlertsTotal.WithLabelValues(source).Add(float64(alertCount))
	if flagged {
		m.FlaggedReportsTotal.WithLabelValues(source).Inc()
	}
}

// RecordCacheAccess counts one cache lookup.
func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// RecordDBQuery observes one database round trip.
func RecordDBQuery(m *AppMetrics, operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordMessagePublished counts one producer send.
func RecordMessagePublished(m *AppMetrics, topic string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.MessagesPublishedTotal.WithLabelValues(topic, status).Inc()
}

// RecordMessageConsumed counts one consumed message and its handling time.
func RecordMessageConsumed(m *AppMetrics, topic string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.MessagesConsumedTotal.WithLabelValues(topic, status).Inc()
	m.MessageProcessDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// SetHealthCheck records the current health of one dependency.
func SetHealthCheck(m *AppMetrics, component string, healthy bool) {
	if m == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

// PipelineMetrics adapts AppMetrics to the extraction pipeline's telemetry
// interface for a fixed source label.
type PipelineMetrics struct {
	App    *AppMetrics
	Source string
}

func (p PipelineMetrics) RecordAnalysis(_ context.Context, resultCount, alertCount int, durationMs float64) {
	if p.App == nil {
		return
	}
	p.App.AnalysisDuration.WithLabelValues(p.Source).Observe(durationMs / 1000)
	p.App.AnalysisResultCount.WithLabelValues(p.Source).Observe(float64(resultCount))
	p.App.AnalysisAlertsTotal.WithLabelValues(p.Source).Add(float64(alertCount))
}
