package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"roadplan/internal/pipeline"
	"roadplan/internal/repository/artifact"
	"roadplan/internal/types"
)

const maxBodyBytes = 1 << 20

// Handler exposes the pipeline stages as JSON endpoints. Any stage left nil
// answers 503.
type Handler struct {
	Selector  *pipeline.WaypointSelector
	Optimizer *pipeline.RouteOptimizer
	Detector  *pipeline.ConflictDetector
	Resolver  *pipeline.ConflictResolver
	Days      *pipeline.DayProcessor
	Trips     *pipeline.TripRunner
	Store     artifact.Store
	Logger    *log.Logger
}

// DetectRequest is the body of POST /v1/days/conflicts.
type DetectRequest struct {
	Day           types.DayItinerary `json:"day"`
	BudgetCeiling *float64           `json:"budget_ceiling,omitempty"`
}

// ResolveRequest is the body of POST /v1/days/resolve. When Conflicts is
// omitted the day is run through the detector first.
type ResolveRequest struct {
	Day           types.DayItinerary `json:"day"`
	Conflicts     []types.Conflict   `json:"conflicts,omitempty"`
	BudgetCeiling *float64           `json:"budget_ceiling,omitempty"`
	Context       types.TripContext  `json:"context"`
}

// ProcessRequest is the body of POST /v1/days/process and POST /v1/trips.
type ProcessRequest struct {
	Day           types.DayItinerary   `json:"day"`
	Days          []types.DayItinerary `json:"days,omitempty"`
	BudgetCeiling *float64             `json:"budget_ceiling,omitempty"`
	Context       types.TripContext    `json:"context"`
	MaxPasses     int                  `json:"max_passes,omitempty"`
	SkipOptimize  bool                 `json:"skip_optimize,omitempty"`
}

func (r ProcessRequest) options() pipeline.DayOptions {
	return pipeline.DayOptions{
		BudgetCeiling: r.BudgetCeiling,
		Context:       r.Context,
		MaxPasses:     r.MaxPasses,
		SkipOptimize:  r.SkipOptimize,
	}
}

func (h *Handler) logf(format string, args ...any) {
	if h.Logger != nil {
		h.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) SelectWaypoints(w http.ResponseWriter, r *http.Request) {
	if h.Selector == nil {
		unavailable(w, "waypoint selection")
		return
	}
	var req types.TripRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Origin) == "" || strings.TrimSpace(req.Destination) == "" {
		writeError(w, http.StatusBadRequest, errors.New("origin and destination are required"))
		return
	}
	writeJSON(w, http.StatusOK, h.Selector.Select(r.Context(), req))
}

func (h *Handler) OptimizeDay(w http.ResponseWriter, r *http.Request) {
	if h.Optimizer == nil {
		unavailable(w, "route optimisation")
		return
	}
	var day types.DayItinerary
	if !decodeBody(w, r, &day) {
		return
	}
	writeJSON(w, http.StatusOK, h.Optimizer.Optimize(r.Context(), day))
}

func (h *Handler) DetectConflicts(w http.ResponseWriter, r *http.Request) {
	if h.Detector == nil {
		unavailable(w, "conflict detection")
		return
	}
	var req DetectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conflicts": h.Detector.Detect(r.Context(), req.Day, req.BudgetCeiling),
	})
}

func (h *Handler) ResolveConflicts(w http.ResponseWriter, r *http.Request) {
	if h.Resolver == nil {
		unavailable(w, "conflict resolution")
		return
	}
	var req ResolveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	conflicts := req.Conflicts
	if conflicts == nil && h.Detector != nil {
		conflicts = h.Detector.Detect(r.Context(), req.Day, req.BudgetCeiling)
	}
	writeJSON(w, http.StatusOK, h.Resolver.Resolve(r.Context(), req.Day, conflicts, req.Context))
}

func (h *Handler) ProcessDay(w http.ResponseWriter, r *http.Request) {
	if h.Days == nil {
		unavailable(w, "day processing")
		return
	}
	var req ProcessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.Days.Process(r.Context(), req.Day, req.options()))
}

func (h *Handler) ProcessTrip(w http.ResponseWriter, r *http.Request) {
	if h.Trips == nil {
		unavailable(w, "trip processing")
		return
	}
	var req ProcessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Days) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("days is required"))
		return
	}
	res := h.Trips.Run(r.Context(), req.Days, req.options())
	h.logf("server: trip run=%s days=%d resolved=%d", res.RunID, res.Summary.Days, res.Summary.Resolved)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		unavailable(w, "artifact store")
		return
	}
	runID := r.PathValue("id")
	paths, err := h.Store.List(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "paths": paths})
}

func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		unavailable(w, "artifact store")
		return
	}
	runID, p := r.PathValue("id"), r.PathValue("path")
	body, err := h.Store.Get(r.Context(), runID, p)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ct := "text/plain; charset=utf-8"
	if strings.HasSuffix(p, ".json") {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return false
	}
	return true
}

func unavailable(w http.ResponseWriter, what string) {
	writeError(w, http.StatusServiceUnavailable, fmt.Errorf("%s is not configured", what))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
