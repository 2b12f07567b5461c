// Package monitor provides Prometheus metrics for the payment reconciler
package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 轮询会话指标
	sessionsStarted prometheus.Counter
	sessionsDone    *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	pollAttempts    prometheus.Counter
	authRetries     prometheus.Counter
	queryErrors     *prometheus.CounterVec
	queryLatency    prometheus.Histogram

	// 状态服务指标
	httpRequests *prometheus.CounterVec
	ipnReceived  *prometheus.CounterVec
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "smmshop",
		Subsystem: "payments",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Monitor{
		registry: reg,

		sessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "sessions_started_total",
			Help:      "轮询会话启动总数",
		}),
		sessionsDone: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sessions_done_total",
				Help:      "轮询会话按最终展示状态收束总数",
			},
			[]string{"display"},
		),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "active_sessions",
			Help:      "当前活跃轮询会话数",
		}),
		pollAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "poll_attempts_total",
			Help:      "状态查询发起总数",
		}),
		authRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "auth_retries_total",
			Help:      "401 重试触发总数",
		}),
		queryErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "query_errors_total",
				Help:      "状态查询失败总数",
			},
			[]string{"kind"},
		),
		queryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "query_latency_seconds",
			Help:      "状态查询延迟分布（秒）",
			Buckets:   prometheus.DefBuckets,
		}),

		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_requests_total",
				Help:      "状态服务HTTP请求总数",
			},
			[]string{"route", "code"},
		),
		ipnReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ipn_received_total",
				Help:      "IPN 回调接收总数",
			},
			[]string{"payment_status"},
		),
	}

	return m
}

// 会话相关方法

func (m *Monitor) RecordSessionStart() {
	m.sessionsStarted.Inc()
	m.activeSessions.Inc()
}

func (m *Monitor) RecordSessionDone(display string) {
	m.sessionsDone.WithLabelValues(display).Inc()
	m.activeSessions.Dec()
}

func (m *Monitor) RecordPollAttempt() {
	m.pollAttempts.Inc()
}

func (m *Monitor) RecordAuthRetry() {
	m.authRetries.Inc()
}

func (m *Monitor) RecordQueryError(kind string) {
	m.queryErrors.WithLabelValues(kind).Inc()
}

func (m *Monitor) ObserveQueryLatency(seconds float64) {
	m.queryLatency.Observe(seconds)
}

// 状态服务相关方法

func (m *Monitor) RecordHTTPRequest(route, code string) {
	m.httpRequests.WithLabelValues(route, code).Inc()
}

func (m *Monitor) RecordIPN(paymentStatus string) {
	m.ipnReceived.WithLabelValues(paymentStatus).Inc()
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
