package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 调用结果标签
const (
	OutcomeSuccess       = "success"
	OutcomeRejected      = "rejected"
	OutcomeTransport     = "transport"
	OutcomeInvalid       = "invalid"
	OutcomeInconsistent  = "inconsistent"
	OutcomeLocalFailure  = "local_failure"
	OutcomeNotPermitted  = "not_permitted"
	OutcomeAlreadyExists = "already_exists"
)

// Metrics 监控指标
//
// 所有记录方法都允许在 nil 接收者上调用，便于测试和命令行工具省略监控。
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 服务商调用指标
	ProviderCallsTotal   *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec

	// 对账指标
	ReconcileOperations *prometheus.CounterVec
	Inconsistencies     *prometheus.CounterVec

	// 系统指标
	DatabaseConnections prometheus.Gauge
	RateLimitBlocks     *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics 在默认注册表上创建监控指标
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewMetricsWithRegistry 在指定注册表上创建监控指标，测试中使用独立注册表避免重复注册
func NewMetricsWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailroute_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailroute_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		ProviderCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailroute_provider_calls_total",
				Help: "Total number of email routing provider calls",
			},
			[]string{"operation", "outcome"},
		),

		ProviderCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailroute_provider_call_duration_seconds",
				Help:    "Email routing provider call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		ReconcileOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailroute_reconcile_operations_total",
				Help: "Total number of rule and destination reconciliation operations",
			},
			[]string{"operation", "outcome"},
		),

		Inconsistencies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailroute_inconsistencies_total",
				Help: "Remote and local state divergences that need operator attention",
			},
			[]string{"operation"},
		),

		DatabaseConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailroute_database_connections",
				Help: "Number of database connections",
			},
		),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailroute_rate_limit_blocks_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"route"},
		),

		gatherer: gatherer,
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordProviderCall 记录一次服务商调用
func (m *Metrics) RecordProviderCall(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ProviderCallsTotal.WithLabelValues(operation, outcome).Inc()
	m.ProviderCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordReconcile 记录对账操作结果
func (m *Metrics) RecordReconcile(operation, outcome string) {
	if m == nil {
		return
	}
	m.ReconcileOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordInconsistency 记录远端与本地状态不一致
func (m *Metrics) RecordInconsistency(operation string) {
	if m == nil {
		return
	}
	m.Inconsistencies.WithLabelValues(operation).Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(route string) {
	if m == nil {
		return
	}
	m.RateLimitBlocks.WithLabelValues(route).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数
func (m *Metrics) UpdateDatabaseConnections(count int) {
	if m == nil {
		return
	}
	m.DatabaseConnections.Set(float64(count))
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
