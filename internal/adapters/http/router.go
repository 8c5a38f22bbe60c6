package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/config"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/ports"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/progress"
)

const backpressureWait = 250 * time.Millisecond

type Router struct {
	cfg       config.Config
	submitter ports.ReviewSubmitter
	tasks     ports.TaskReader
	registry  *progress.Registry

	metricsHandler http.Handler
	wrap           func(http.Handler) http.Handler
}

func NewRouter(
	cfg config.Config,
	submitter ports.ReviewSubmitter,
	tasks ports.TaskReader,
	registry *progress.Registry,
) *Router {
	return &Router{
		cfg:       cfg,
		submitter: submitter,
		tasks:     tasks,
		registry:  registry,
	}
}

// WithMetrics exposes handler on /metrics and wraps every request with
// middleware, typically the Prometheus HTTP instrumentation.
func (rt *Router) WithMetrics(handler http.Handler, middleware func(http.Handler) http.Handler) *Router {
	rt.metricsHandler = handler
	rt.wrap = middleware
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", rt.healthz)
	if rt.metricsHandler != nil {
		r.Handle("/metrics", rt.metricsHandler)
	}

	r.Route("/v1/reviews", func(r chi.Router) {
		r.With(func(next http.Handler) http.Handler {
			limited := rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
			return backpressureMiddleware(limited, rt.cfg.APIMaxInFlight, backpressureWait)
		}).Post("/", rt.createReview)
		r.Get("/{taskID}", rt.getReview)
		r.Get("/{taskID}/events", rt.streamEvents)
	})

	var handler http.Handler = r
	if rt.wrap != nil {
		handler = rt.wrap(handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
