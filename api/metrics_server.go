package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/threshingfloor/roastery-backend/pkg/logger"
)

// MetricsHandler serves the gatherer at /metrics.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return r
}

// ServeMetrics exposes g on addr in the background for the worker binaries,
// which have no API router of their own. An empty addr disables it.
func ServeMetrics(ctx context.Context, addr string, g prometheus.Gatherer, logg *logger.Logger) {
	if addr == "" {
		return
	}
	go func() {
		if err := NewServer(addr, MetricsHandler(g), logg).Run(ctx); err != nil && logg != nil {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()
}
