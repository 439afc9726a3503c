// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層、ストアクライアントから利用する。
type MetricsCollector interface {
	RecordRequest(route string, statusCode int, duration time.Duration)
	RecordDegraded(component string)
	RecordStoreCall(backend, operation string, duration time.Duration, err error)
	RecordStoreRetry(backend string)
	SetBreakerState(name string, open bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	degraded       *prometheus.CounterVec
	storeCalls     *prometheus.CounterVec
	storeLatency   *prometheus.HistogramVec
	storeRetries   *prometheus.CounterVec
	breakerOpen    *prometheus.GaugeVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ridertraining_requests_total",
			Help: "エンドポイントとステータスコード別のリクエスト数",
		}, []string{"route", "status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ridertraining_request_duration_seconds",
			Help:    "リクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ridertraining_degraded_responses_total",
			Help: "接続障害によりフィクスチャで応答した回数",
		}, []string{"component"}),
		storeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ridertraining_store_calls_total",
			Help: "バックエンドストア呼び出しの合計数",
		}, []string{"backend", "operation", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ridertraining_store_latency_seconds",
			Help:    "バックエンドストア呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		storeRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ridertraining_store_retries_total",
			Help: "一時的な障害によるストア呼び出しの再試行数",
		}, []string{"backend"}),
		breakerOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ridertraining_circuit_breaker_open",
			Help: "サーキットブレーカーが開いているか（1=open, 0=closed/half-open）",
		}, []string{"name"}),
	}

	reg.MustRegister(
		c.requests,
		c.requestLatency,
		c.degraded,
		c.storeCalls,
		c.storeLatency,
		c.storeRetries,
		c.breakerOpen,
	)

	return c
}

// RecordRequest はリクエストの結果と処理時間を記録する。
func (c *Collector) RecordRequest(route string, statusCode int, duration time.Duration) {
	c.requests.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
	c.requestLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordDegraded はデグレードモードでの応答を記録する。
func (c *Collector) RecordDegraded(component string) {
	c.degraded.WithLabelValues(component).Inc()
}

// RecordStoreCall はストア呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordStoreCall(backend, operation string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.storeCalls.WithLabelValues(backend, operation, result).Inc()
	c.storeLatency.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordStoreRetry は再試行を記録する。
func (c *Collector) RecordStoreRetry(backend string) {
	c.storeRetries.WithLabelValues(backend).Inc()
}

// SetBreakerState はサーキットブレーカーの状態を記録する。
func (c *Collector) SetBreakerState(name string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	c.breakerOpen.WithLabelValues(name).Set(v)
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordRequest(string, int, time.Duration)             {}
func (Nop) RecordDegraded(string)                                {}
func (Nop) RecordStoreCall(string, string, time.Duration, error) {}
func (Nop) RecordStoreRetry(string)                              {}
func (Nop) SetBreakerState(string, bool)                         {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// HealthFunc は依存先の疎通確認を行う関数。nilを返せば正常。
type HealthFunc func(r *http.Request) error

// SetupMetricsRoute は/metricsと/healthを提供する運用向けHTTPハンドラーを返す。
// healthがnilの場合、/healthは常に200を返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer, health HealthFunc) http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", Handler(gatherer))
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if health != nil {
			if err := health(req); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	return r
}

// compile-time interface checks
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
