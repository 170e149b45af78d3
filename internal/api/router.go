// Package api assembles the HTTP surface: routing, middleware and handlers.
package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/altamira-asset/indexes-server/internal/api/handlers"
	"github.com/altamira-asset/indexes-server/internal/api/middleware"
	"github.com/altamira-asset/indexes-server/internal/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps carries everything the router needs; the serve command wires them.
type Deps struct {
	Pool        *pgxpool.Pool
	Collections handlers.CollectionService
	Quotations  handlers.QuotationReader
	Environment string
	Logger      zerolog.Logger
}

func NewRouter(deps Deps) http.Handler {
	collections := handlers.NewCollectionsHandler(deps.Collections, deps.Quotations, deps.Environment)

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/readyz", handlers.Readyz(deps.Pool))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.Handle("/api/v1/collections", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(collections.Collect),
	}))
	mux.Handle("/api/v1/collections:latest", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(collections.CollectLatest),
	}))
	mux.Handle("/api/v1/synthetic-bases:seed", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(collections.SeedBases),
	}))
	mux.Handle("/api/v1/quotations", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(collections.ListQuotations),
	}))
	mux.Handle("/api/v1/indices:missing", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(collections.MissingIndices),
	}))

	var handler http.Handler = mux
	handler = middleware.RequestLogging(deps.Logger)(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	return handler
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
