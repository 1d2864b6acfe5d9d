package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 任务创建数
	tasksCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_created_total",
			Help: "Total number of tasks created",
		},
		[]string{"task_type"},
	)

	// 任务终态数
	tasksFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_finished_total",
			Help: "Total number of tasks reaching a terminal state",
		},
		[]string{"state"}, // SUCCESS / FAILURE
	)

	// 拉取缓存命中/未命中
	fetchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_cache_total",
			Help: "Fetch cache lookups by outcome",
		},
		[]string{"outcome"}, // hit / miss
	)

	// 外部数据源失败数
	providerFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "provider_failures_total",
			Help: "Total number of external provider failures",
		},
	)

	// 建议器降级数
	suggesterFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggester_fallbacks_total",
			Help: "Heuristic fallbacks of the variant suggester",
		},
		[]string{"reason"}, // disabled / empty / error
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// 任务状态分布
	tasksByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tasks_by_state",
			Help: "Number of tasks by state",
		},
		[]string{"state"},
	)
)

var once sync.Once

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(tasksCreatedTotal)
	prometheus.MustRegister(tasksFinishedTotal)
	prometheus.MustRegister(fetchCacheTotal)
	prometheus.MustRegister(providerFailuresTotal)
	prometheus.MustRegister(suggesterFallbacksTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(tasksByState)

	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordTaskCreated 记录任务创建
func RecordTaskCreated(taskType string) {
	tasksCreatedTotal.WithLabelValues(taskType).Inc()
}

// RecordTaskFinished 记录任务到达终态
func RecordTaskFinished(state string) {
	tasksFinishedTotal.WithLabelValues(state).Inc()
}

// RecordCacheHit 记录缓存命中
func RecordCacheHit() {
	fetchCacheTotal.WithLabelValues("hit").Inc()
}

// RecordCacheMiss 记录缓存未命中
func RecordCacheMiss() {
	fetchCacheTotal.WithLabelValues("miss").Inc()
}

// RecordProviderFailure 记录外部数据源失败
func RecordProviderFailure() {
	providerFailuresTotal.Inc()
}

// RecordSuggesterFallback 记录建议器降级
func RecordSuggesterFallback(reason string) {
	suggesterFallbacksTotal.WithLabelValues(reason).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))

	return nil
}

// UpdateTasksByState 更新任务状态分布指标
func UpdateTasksByState(state string, count float64) {
	tasksByState.WithLabelValues(state).Set(count)
}
