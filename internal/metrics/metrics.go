// metrics — Prometheus-коллекторы HTTP-слоя и операций аутентификации.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для label result.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics — набор коллекторов. Нулевой указатель допустим: все методы становятся no-op.
type Metrics struct {
	authOps         *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New создаёт коллекторы и регистрирует их в reg.
// В main это prometheus.DefaultRegisterer, в тестах — отдельный prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		authOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_operations_total",
			Help: "Authentication operations by kind and result.",
		}, []string{"op", "result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_refresh_total",
			Help: "Refresh-token exchanges by result (ok, invalid_token, token_expired, error).",
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(m.authOps, m.refreshes, m.requests, m.requestDuration)

	return m
}

// AuthOp учитывает операцию аутентификации (login, register, logout, change_password).
func (m *Metrics) AuthOp(op string, err error) {
	if m == nil {
		return
	}

	result := ResultOK
	if err != nil {
		result = ResultError
	}

	m.authOps.WithLabelValues(op, result).Inc()
}

// Refresh учитывает обмен refresh-токена с заданным результатом.
func (m *Metrics) Refresh(result string) {
	if m == nil {
		return
	}

	m.refreshes.WithLabelValues(result).Inc()
}

// ObserveRequest учитывает завершённый HTTP-запрос.
func (m *Metrics) ObserveRequest(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}

	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(dur.Seconds())
}
