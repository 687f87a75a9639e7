package middleware

import (
	"net/http"
)

// HTTPStatusRecorder はレスポンスステータスの記録に必要なインターフェース。
// metrics.Collectorがこのインターフェースを満たす。
type HTTPStatusRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// NewMetricsMiddleware はレスポンスのHTTPステータスコードをメトリクスとして
// 記録するミドルウェアを返す。
func NewMetricsMiddleware(recorder HTTPStatusRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(sr, r)
			recorder.RecordHTTPStatus(sr.statusCode)
		})
	}
}
