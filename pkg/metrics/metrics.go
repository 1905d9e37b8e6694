package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics набор prometheus-метрик сервиса
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	dbQueryDuration *prometheus.HistogramVec
	dbQueryErrors   *prometheus.CounterVec
	dbOpenConns     *prometheus.GaugeVec
	dbInUseConns    *prometheus.GaugeVec
	dbIdleConns     *prometheus.GaugeVec
	dbWaitCount     *prometheus.GaugeVec

	paymentsTotal      *prometheus.CounterVec
	walletOperations   *prometheus.CounterVec
	webhookEventsTotal *prometheus.CounterVec
	sweeperRuns        *prometheus.CounterVec
}

// New создает метрики и регистрирует их в глобальном реестре prometheus
func New(serviceName string) *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, serviceName)
}

// NewWithRegistry создает метрики и регистрирует их в переданном реестре
func NewWithRegistry(reg prometheus.Registerer, serviceName string) *Metrics {
	constLabels := prometheus.Labels{"service": serviceName}

	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),
		dbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "db_query_duration_seconds",
			Help:        "Database query duration in seconds",
			ConstLabels: constLabels,
			Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
		dbQueryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "db_query_errors_total",
			Help:        "Total number of failed database queries",
			ConstLabels: constLabels,
		}, []string{"operation"}),
		dbOpenConns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "db_open_connections",
			Help:        "Number of established connections",
			ConstLabels: constLabels,
		}, []string{}),
		dbInUseConns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "db_in_use_connections",
			Help:        "Number of connections currently in use",
			ConstLabels: constLabels,
		}, []string{}),
		dbIdleConns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "db_idle_connections",
			Help:        "Number of idle connections",
			ConstLabels: constLabels,
		}, []string{}),
		dbWaitCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "db_wait_count",
			Help:        "Total number of connections waited for",
			ConstLabels: constLabels,
		}, []string{}),
		paymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "payments_total",
			Help:        "Payments by method and resulting status",
			ConstLabels: constLabels,
		}, []string{"method", "status"}),
		walletOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "wallet_operations_total",
			Help:        "Wallet ledger operations by type and outcome",
			ConstLabels: constLabels,
		}, []string{"type", "outcome"}),
		webhookEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "webhook_events_total",
			Help:        "Webhook deliveries by provider and outcome",
			ConstLabels: constLabels,
		}, []string{"provider", "outcome"}),
		sweeperRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "sweeper_runs_total",
			Help:        "Background sweep runs by job and outcome",
			ConstLabels: constLabels,
		}, []string{"job", "outcome"}),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.dbQueryDuration,
		m.dbQueryErrors,
		m.dbOpenConns,
		m.dbInUseConns,
		m.dbIdleConns,
		m.dbWaitCount,
		m.paymentsTotal,
		m.walletOperations,
		m.webhookEventsTotal,
		m.sweeperRuns,
	)

	return m
}

// ObserveHTTPRequest учитывает обработанный HTTP запрос
func (m *Metrics) ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveQuery учитывает выполненный SQL запрос
func (m *Metrics) ObserveQuery(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.dbQueryErrors.WithLabelValues(operation).Inc()
	}
}

// SetPoolStats обновляет метрики пула соединений
func (m *Metrics) SetPoolStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.dbOpenConns.WithLabelValues().Set(float64(stats.OpenConnections))
	m.dbInUseConns.WithLabelValues().Set(float64(stats.InUse))
	m.dbIdleConns.WithLabelValues().Set(float64(stats.Idle))
	m.dbWaitCount.WithLabelValues().Set(float64(stats.WaitCount))
}

// PaymentObserved учитывает платеж в итоговом статусе
func (m *Metrics) PaymentObserved(method, status string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(method, status).Inc()
}

// WalletOperation учитывает операцию кошелька (credit/debit) и её исход
func (m *Metrics) WalletOperation(operationType, outcome string) {
	if m == nil {
		return
	}
	m.walletOperations.WithLabelValues(operationType, outcome).Inc()
}

// WebhookEvent учитывает доставку вебхука
func (m *Metrics) WebhookEvent(provider, outcome string) {
	if m == nil {
		return
	}
	m.webhookEventsTotal.WithLabelValues(provider, outcome).Inc()
}

// SweeperRun учитывает запуск фоновой задачи
func (m *Metrics) SweeperRun(job, outcome string) {
	if m == nil {
		return
	}
	m.sweeperRuns.WithLabelValues(job, outcome).Inc()
}
