package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "workforce_scheduling"

// Metrics 的方法都允许在 nil 上调用，未启用监控时直接传 nil 即可
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	assignments     *prometheus.CounterVec
	publishFailures prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "已处理的 HTTP 请求数",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP 请求处理耗时",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "班次分配操作的结果",
		}, []string{"operation", "status"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "发送到消息队列失败的分配事件数",
		}),
	}

	reg.MustRegister(m.requests, m.requestDuration, m.assignments, m.publishFailures)

	return m
}

func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveAssignment 记录单个员工的分配结果，operation 为 assign、assign_all 或 remove
func (m *Metrics) ObserveAssignment(operation, status string) {
	if m == nil {
		return
	}

	m.assignments.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) ObservePublishFailure() {
	if m == nil {
		return
	}

	m.publishFailures.Inc()
}
