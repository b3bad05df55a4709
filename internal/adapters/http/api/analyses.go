package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/scoredist/internal/domain/model"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 500
)

// AnalysesHandler serves /analyses and /analyses/{id}[/density].
type AnalysesHandler struct {
	deps         Dependencies
	maxBodyBytes int64
}

// NewAnalysesHandler creates a new analyses handler.
func NewAnalysesHandler(deps Dependencies, maxBodyBytes int64) *AnalysesHandler {
	return &AnalysesHandler{deps: deps, maxBodyBytes: maxBodyBytes}
}

// HandleCollection handles POST /analyses and GET /analyses?limit=N.
func (h *AnalysesHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.NotFound(w, r)
	}
}

// HandleItem handles GET /analyses/{id} and GET /analyses/{id}/density.
func (h *AnalysesHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_analysis"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/analyses/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	switch sub {
	case "":
		a, err := h.deps.Get(r.Context(), id)
		if err != nil {
			writeFailure(w, WrapKind(op, kindOf(err), err))
			return
		}
		writeJSON(w, http.StatusOK, a)
	case "density":
		h.density(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *AnalysesHandler) create(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_analysis"

	var req model.AnalysisRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	a, err := h.deps.Analyze(r.Context(), req)
	if err != nil {
		writeFailure(w, WrapKind(op, kindOf(err), err))
		return
	}
	w.Header().Set("Location", "/analyses/"+a.ID)
	writeJSON(w, http.StatusCreated, a)
}

type listResponse struct {
	Analyses []*model.Analysis `json:"analyses"`
}

func (h *AnalysesHandler) list(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_analyses"

	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("limit must be a positive integer")))
			return
		}
		if n > maxRecentLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	items, err := h.deps.Recent(r.Context(), limit)
	if err != nil {
		writeFailure(w, WrapKind(op, kindOf(err), err))
		return
	}
	if items == nil {
		items = []*model.Analysis{}
	}
	writeJSON(w, http.StatusOK, listResponse{Analyses: items})
}

func (h *AnalysesHandler) density(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.get_density"

	var step float64
	if raw := r.URL.Query().Get("step"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || !(v > 0) {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("step must be a positive number")))
			return
		}
		step = v
	}

	points, err := h.deps.Density(r.Context(), id, step)
	if err != nil {
		writeFailure(w, WrapKind(op, kindOf(err), err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "points": points})
}

// kindOf picks the API kind that best describes a dependency error.
func kindOf(err error) error {
	status, _ := classify(err)
	switch status {
	case http.StatusTooManyRequests:
		return ErrBackpressure
	case http.StatusBadRequest:
		return ErrBadRequest
	default:
		return ErrServe
	}
}
