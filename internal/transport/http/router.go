package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"normative/pkg/requestcontext"
)

// NewRouter wires the public endpoints. The API surface is read-only:
// mutation happens through the batch pipeline and the operational CLI.
func NewRouter(rulesHandler *RulesHandler, health http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(requestMetadata)

	r.Get("/healthz", health)
	r.Handle("/metrics", promhttp.Handler())
	rulesHandler.Register(r)
	return r
}

// requestMetadata injects a correlation id and a pinned request time so every
// read in one request observes the same instant.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = requestcontext.WithRequestID(ctx, requestID)
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Healthz builds the health endpoint from the configured dependency checks.
func Healthz(checks map[string]func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for name, check := range checks {
			if err := check(); err != nil {
				http.Error(w, name+" unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
