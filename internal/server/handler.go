package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/emberwatch/firecommand/internal/archive"
	"github.com/emberwatch/firecommand/internal/geo"
	"github.com/emberwatch/firecommand/internal/impact"
	"github.com/emberwatch/firecommand/internal/model"
	"github.com/emberwatch/firecommand/internal/monitor"
	"github.com/emberwatch/firecommand/internal/session"
	"github.com/emberwatch/firecommand/pkg/core"
	"github.com/emberwatch/firecommand/pkg/streaming"
	"github.com/gorilla/mux"
)

const maxBodySize = 1 << 20

// RunStore is the run archive as seen by the API.
type RunStore interface {
	Runs(limit int) ([]model.Run, error)
	Run(requestID string) (model.Run, error)
	Failures(limit int) ([]model.Failure, error)
	AssetHistory(assetID string) ([]model.Risk, error)
	Stats() (archive.Stats, error)
}

// Handler provides the HTTP API endpoints.
type Handler struct {
	session  *session.Session
	controls Controls
	runs     RunStore
	monitor  *monitor.Service
	log      *slog.Logger
}

// NewHandler creates a new API handler. runs and mon may be nil.
func NewHandler(s *session.Session, runs RunStore, mon *monitor.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		session:  s,
		controls: Controls{session: s},
		runs:     runs,
		monitor:  mon,
		log:      log,
	}
}

// RegisterRoutes sets up all API routes.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/state", h.handleState).Methods("GET")
	r.HandleFunc("/status", h.handleStatus).Methods("GET")

	// control
	r.HandleFunc("/dispatch", h.handleDispatch).Methods("POST")
	r.HandleFunc("/ready", h.handleReady).Methods("POST")
	r.HandleFunc("/parameters", h.handleGetParameters).Methods("GET")
	r.HandleFunc("/parameters", h.handleSetParameters).Methods("POST")
	r.HandleFunc("/relocate", h.handleRelocate).Methods("POST")
	r.HandleFunc("/playback/{action:scrub|restart|toggle}", h.handlePlayback).Methods("POST")
	r.HandleFunc("/command", h.handleCommand).Methods("POST")

	// views
	r.HandleFunc("/frame", h.handleFrame).Methods("GET")
	r.HandleFunc("/landmarks", h.handleLandmarks).Methods("GET")
	r.HandleFunc("/risks", h.handleRisks).Methods("GET")

	// archive
	r.HandleFunc("/runs", h.handleRuns).Methods("GET")
	r.HandleFunc("/runs/stats", h.handleRunStats).Methods("GET")
	r.HandleFunc("/runs/{id}", h.handleRun).Methods("GET")
	r.HandleFunc("/failures", h.handleFailures).Methods("GET")
	r.HandleFunc("/assets/{id}/history", h.handleAssetHistory).Methods("GET")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// respondError sends a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Warn("API request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	respondError(w, status, err.Error())
}

// decodeBody reads an optional JSON body into v. Unknown fields are rejected.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func readRaw(r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, badRequest("read body: %v", err)
	}
	return json.RawMessage(body), nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"session": h.session.ID().String(),
	})
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		respondError(w, http.StatusNotFound, "monitor is disabled")
		return
	}
	respondJSON(w, http.StatusOK, h.monitor.GetProgramStatus())
}

func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var p streaming.DispatchPayload
	if err := decodeBody(r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.controls.Dispatch(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Decision != session.DecisionExecute {
		status = http.StatusAccepted
	}
	respondJSON(w, status, res)
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	fired, err := h.session.NotifyReady(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"fired": fired})
}

func (h *Handler) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Snapshot().Parameters)
}

func (h *Handler) handleSetParameters(w http.ResponseWriter, r *http.Request) {
	raw, err := readRaw(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	params, err := h.controls.SetParameters(r.Context(), raw)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, params)
}

func (h *Handler) handleRelocate(w http.ResponseWriter, r *http.Request) {
	var req relocateRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	origin, err := h.controls.Relocate(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"origin": origin})
}

func (h *Handler) handlePlayback(w http.ResponseWriter, r *http.Request) {
	var (
		state core.PlaybackState
		err   error
	)
	switch mux.Vars(r)["action"] {
	case "scrub":
		var p streaming.ScrubPayload
		if err := decodeBody(r, &p); err != nil {
			h.fail(w, r, err)
			return
		}
		state, err = h.session.Scrub(r.Context(), p.Index)
	case "restart":
		state, err = h.session.Restart(r.Context())
	case "toggle":
		state, err = h.session.Toggle(r.Context())
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	var p streaming.CommandPayload
	if err := decodeBody(r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.controls.Command(r.Context(), p.Prompt)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func projection(r *http.Request) (geo.Projection, error) {
	proj, err := geo.ParseProjection(r.URL.Query().Get("projection"))
	if err != nil {
		return "", badRequest("%v", err)
	}
	return proj, nil
}

func (h *Handler) handleFrame(w http.ResponseWriter, r *http.Request) {
	proj, err := projection(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap := h.session.Snapshot()
	frame := h.session.VisibleFrame()
	respondJSON(w, http.StatusOK, map[string]any{
		"index":        snap.Playback.FrameIndex,
		"frames":       snap.Frames,
		"elapsedHours": snap.ElapsedHours,
		"playing":      snap.Playback.IsPlaying,
		"projection":   proj,
		"features":     geo.FrameFeatures(frame, proj),
	})
}

func (h *Handler) handleLandmarks(w http.ResponseWriter, r *http.Request) {
	proj, err := projection(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"projection": proj,
		"features":   geo.LandmarkFeatures(h.session.Landmarks(), proj),
	})
}

func parseFloatParam(q map[string][]string, key string) (float64, error) {
	v := ""
	if vals := q[key]; len(vals) > 0 {
		v = vals[0]
	}
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, badRequest("%s must be a non-negative number", key)
	}
	return f, nil
}

func (h *Handler) handleRisks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f impact.Filter
	var err error
	if f.MinHours, err = parseFloatParam(q, "min_time"); err != nil {
		h.fail(w, r, err)
		return
	}
	if f.MaxHours, err = parseFloatParam(q, "max_time"); err != nil {
		h.fail(w, r, err)
		return
	}
	for _, t := range q["type"] {
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				f.AssetTypes = append(f.AssetTypes, core.ParseAssetType(part))
			}
		}
	}
	f.NameQuery = q.Get("q")

	risks := h.session.Risks(f)
	if names := q["name"]; len(names) > 0 {
		risks = impact.MatchNames(risks, names)
	}
	snap := h.session.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"risks":   risks,
		"summary": impact.Summarize(risks),
		"pending": snap.RisksPending,
	})
}

func limitParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 50, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("limit must be a non-negative integer")
	}
	return n, nil
}

func (h *Handler) archiveAvailable(w http.ResponseWriter) bool {
	if h.runs == nil {
		respondError(w, http.StatusNotFound, "run archive is disabled")
		return false
	}
	return true
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !h.archiveAvailable(w) {
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	runs, err := h.runs.Runs(limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

func (h *Handler) handleRunStats(w http.ResponseWriter, r *http.Request) {
	if !h.archiveAvailable(w) {
		return
	}
	stats, err := h.runs.Stats()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	if !h.archiveAvailable(w) {
		return
	}
	run, err := h.runs.Run(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (h *Handler) handleFailures(w http.ResponseWriter, r *http.Request) {
	if !h.archiveAvailable(w) {
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	failures, err := h.runs.Failures(limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, failures)
}

func (h *Handler) handleAssetHistory(w http.ResponseWriter, r *http.Request) {
	if !h.archiveAvailable(w) {
		return
	}
	history, err := h.runs.AssetHistory(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}
