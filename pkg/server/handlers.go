package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/evolayout/pkg/buildinfo"
	"github.com/matzehuels/evolayout/pkg/errors"
	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/pipeline"
	"github.com/matzehuels/evolayout/pkg/render/nodelink"
	"github.com/matzehuels/evolayout/pkg/store"
)

// LayoutRequest is the body of POST /v1/layout.
type LayoutRequest struct {
	Snapshot graph.Snapshot   `json:"snapshot"`
	Options  pipeline.Options `json:"options"`
	// Save stores the result as a run.
	Save bool `json:"save,omitempty"`
}

// IncrementalRequest is the body of POST /v1/incremental. Previous must
// carry positions for all of its nodes; it may be omitted for a first
// step.
type IncrementalRequest struct {
	Previous *graph.Snapshot  `json:"previous,omitempty"`
	Current  graph.Snapshot   `json:"current"`
	Options  pipeline.Options `json:"options"`
	Save     bool             `json:"save,omitempty"`
}

// TimelineRequest is the body of POST /v1/timeline.
type TimelineRequest struct {
	Snapshots []graph.Snapshot `json:"snapshots"`
	Options   pipeline.Options `json:"options"`
}

// RenderRequest is the body of POST /v1/render.
type RenderRequest struct {
	Snapshot  graph.Snapshot `json:"snapshot"`
	Format    string         `json:"format"`
	Labels    bool           `json:"labels,omitempty"`
	Scale     float64        `json:"scale,omitempty"`
	Highlight []string       `json:"highlight,omitempty"`
}

// LayoutResponse describes one solved snapshot.
type LayoutResponse struct {
	RunID      string             `json:"run_id"`
	Mode       string             `json:"mode"`
	CacheHit   bool               `json:"cache_hit"`
	Stats      pipeline.Stats     `json:"stats"`
	Snapshot   graph.Snapshot     `json:"snapshot"`
	NewNodes   []string           `json:"new_nodes,omitempty"`
	Pinning    map[string]float64 `json:"pinning,omitempty"`
	HighEnergy []string           `json:"high_energy,omitempty"`
}

// TimelineResponse describes a solved timeline.
type TimelineResponse struct {
	RunID  string           `json:"run_id"`
	Stored bool             `json:"stored"`
	Frames []LayoutResponse `json:"frames"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func toResponse(res *pipeline.Result, label string) LayoutResponse {
	out := LayoutResponse{
		RunID:    res.RunID,
		Mode:     res.Mode,
		CacheHit: res.CacheHit,
		Stats:    res.Stats,
		Snapshot: res.Snapshot(label),
		Pinning:  res.Pinning,
	}
	if res.Delta != nil {
		out.NewNodes = res.Delta.NewNodes
	}
	if res.Energy != nil {
		out.HighEnergy = res.Energy.High
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildinfo.Get().Version})
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	var req LayoutRequest
	if !s.decode(w, r, &req) {
		return
	}
	g, pos, err := req.Snapshot.ToGraph()
	if err != nil {
		s.respondError(w, err)
		return
	}
	res, err := s.runner.Run(r.Context(), g, pos, req.Options)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if req.Save && !s.saveResult(w, r, res, req.Snapshot.Label) {
		return
	}
	s.respondJSON(w, http.StatusOK, toResponse(res, req.Snapshot.Label))
}

func (s *Server) handleIncremental(w http.ResponseWriter, r *http.Request) {
	var req IncrementalRequest
	if !s.decode(w, r, &req) {
		return
	}
	cur, _, err := req.Current.ToGraph()
	if err != nil {
		s.respondError(w, err)
		return
	}
	res, err := func() (*pipeline.Result, error) {
		if req.Previous == nil {
			return s.runner.RunIncrementalStep(r.Context(), nil, nil, cur, req.Options)
		}
		pg, pp, err := req.Previous.ToGraph()
		if err != nil {
			return nil, err
		}
		for _, id := range pg.NodeIDs() {
			if !pp.Has(id) {
				return nil, errors.New(errors.ErrCodeInvalidInput, "previous snapshot: node %q has no position", id)
			}
		}
		return s.runner.RunIncrementalStep(r.Context(), pg, pp, cur, req.Options)
	}()
	if err != nil {
		s.respondError(w, err)
		return
	}
	if req.Save && !s.saveResult(w, r, res, req.Current.Label) {
		return
	}
	s.respondJSON(w, http.StatusOK, toResponse(res, req.Current.Label))
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	var req TimelineRequest
	if !s.decode(w, r, &req) {
		return
	}
	tl, err := s.runner.RunTimeline(r.Context(), req.Snapshots, req.Options, nil)
	if err != nil {
		s.respondError(w, err)
		return
	}

	resp := TimelineResponse{RunID: tl.RunID}
	for i, f := range tl.Frames {
		resp.Frames = append(resp.Frames, toResponse(f, tl.Labels[i]))
	}
	if s.store != nil {
		seed := req.Options.Seed
		if seed == 0 {
			seed = pipeline.DefaultSeed
		}
		if err := s.store.SaveRun(r.Context(), tl.Run(seed)); err != nil {
			s.respondError(w, err)
			return
		}
		resp.Stored = true
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if !s.decode(w, r, &req) {
		return
	}
	g, pos, err := req.Snapshot.ToGraph()
	if err != nil {
		s.respondError(w, err)
		return
	}
	data, hit, err := s.runner.Render(r.Context(), &pipeline.Result{Graph: g, Positions: pos}, pipeline.RenderOptions{
		Format:    req.Format,
		Labels:    req.Labels,
		Scale:     req.Scale,
		Highlight: req.Highlight,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType(req.Format))
	w.Header().Set("X-Cache-Hit", strconv.FormatBool(hit))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, errors.New(errors.ErrCodeInvalidInput, "invalid limit %q", v))
			return
		}
		limit = n
	}
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if runs == nil {
		runs = []store.Summary{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if err := s.store.DeleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Server) saveResult(w http.ResponseWriter, r *http.Request, res *pipeline.Result, label string) bool {
	if !s.requireStore(w) {
		return false
	}
	run := store.NewRun(res.Mode)
	run.ID = res.RunID
	run.Frames = []store.Frame{res.Frame(label)}
	if err := s.store.SaveRun(r.Context(), run); err != nil {
		s.respondError(w, err)
		return false
	}
	return true
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		s.respondError(w, errors.New(errors.ErrCodeUnsupported, "run storage is not configured"))
		return false
	}
	return true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.respondError(w, errors.Wrap(errors.ErrCodeInvalidFormat, err, "invalid request body"))
		return false
	}
	return true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	code := string(errors.GetCode(err))
	msg := errors.UserMessage(err)
	if code == "" {
		code = string(errors.ErrCodeInternal)
	}
	if status >= 500 {
		s.logger.Error("request failed", "error", err)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	s.respondJSON(w, status, errorResponse{Error: code, Message: msg})
}

func contentType(format string) string {
	switch format {
	case nodelink.FormatPNG:
		return "image/png"
	case nodelink.FormatDOT:
		return "text/vnd.graphviz"
	case "", nodelink.FormatSVG:
		return "image/svg+xml"
	default:
		return fmt.Sprintf("application/x-%s", format)
	}
}
