package server

import (
	"log"
	"net/http"
	"time"

	"github.com/rs/cors"
)

type MuxOptions struct {
	AllowedOrigins []string
	// RequestsPerSecond per client address; zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	Logger            *log.Logger
}

func NewMux(h *Handler, opts MuxOptions) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Health)

	mux.HandleFunc("POST /v1/waypoints", h.SelectWaypoints)
	mux.HandleFunc("POST /v1/days/optimize", h.OptimizeDay)
	mux.HandleFunc("POST /v1/days/conflicts", h.DetectConflicts)
	mux.HandleFunc("POST /v1/days/resolve", h.ResolveConflicts)
	mux.HandleFunc("POST /v1/days/process", h.ProcessDay)
	mux.HandleFunc("POST /v1/trips", h.ProcessTrip)

	mux.HandleFunc("GET /v1/runs/{id}/artifacts", h.ListArtifacts)
	mux.HandleFunc("GET /v1/runs/{id}/artifacts/{path...}", h.GetArtifact)

	var handler http.Handler = mux
	if opts.RequestsPerSecond > 0 {
		handler = NewIPRateLimiter(opts.RequestsPerSecond, opts.Burst).Limit(handler)
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(handler)

	return logging(opts.Logger, handler)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logging(logger *log.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Printf("http: %s %s status=%d took=%s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
