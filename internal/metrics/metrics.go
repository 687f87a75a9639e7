// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordBorrowSuccess()
	RecordBorrowRejected(reason string)
	RecordReturnSuccess()
	RecordBorrowLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	borrowSuccess  prometheus.Counter
	borrowRejected *prometheus.CounterVec
	returnSuccess  prometheus.Counter
	borrowLatency  prometheus.Histogram
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		borrowSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookman_borrow_success_total",
			Help: "貸出成功の合計数",
		}),
		borrowRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookman_borrow_rejected_total",
			Help: "貸出拒否の理由別合計数",
		}, []string{"reason"}),
		returnSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookman_return_success_total",
			Help: "返却成功の合計数",
		}),
		borrowLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookman_borrow_latency_seconds",
			Help:    "貸出処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.borrowSuccess,
		c.borrowRejected,
		c.returnSuccess,
		c.borrowLatency,
		c.httpStatus,
	)

	return c
}

// RecordBorrowSuccess は貸出成功を記録する。
func (c *Collector) RecordBorrowSuccess() {
	c.borrowSuccess.Inc()
}

// RecordBorrowRejected は貸出拒否を理由付きで記録する。
func (c *Collector) RecordBorrowRejected(reason string) {
	c.borrowRejected.WithLabelValues(reason).Inc()
}

// RecordReturnSuccess は返却成功を記録する。
func (c *Collector) RecordReturnSuccess() {
	c.returnSuccess.Inc()
}

// RecordBorrowLatency は貸出処理のレイテンシを記録する。
func (c *Collector) RecordBorrowLatency(duration time.Duration) {
	c.borrowLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
