// Package handler は運用用HTTPエンドポイントのルーティングを提供する。
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker はボットの稼働状態を報告するインターフェース。
type HealthChecker interface {
	// Healthy はプラットフォーム接続が確立済みの場合にtrueを返す。
	Healthy() bool
}

// NewRouter は運用エンドポイントのルーティングとミドルウェアチェーンを
// 構成したchi.Routerを返す。
//
// エンドポイント:
//
//	GET /health  - 稼働状態（200 ok / 503 unavailable）
//	GET /metrics - Prometheusメトリクス
func NewRouter(health HealthChecker, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(NewRecoveryMiddleware())
	r.Use(NewLoggingMiddleware(logger))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if health != nil && !health.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
