package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/tmplsync/internal/engine"
	"github.com/leapstack-labs/tmplsync/pkg/core"
	"github.com/leapstack-labs/tmplsync/pkg/params"
)

// TemplateInfo describes a template and its implementations.
type TemplateInfo struct {
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Variables       []string `json:"variables"`
	Implementations []string `json:"implementations"`
}

// SyncReportJSON is the wire form of an engine.SyncReport.
type SyncReportJSON struct {
	RunID     string            `json:"run_id"`
	Template  string            `json:"template"`
	Synced    []string          `json:"synced"`
	Unchanged []string          `json:"unchanged"`
	Skipped   int               `json:"skipped"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// ImplementationRequest is the body of PUT /api/implementations/{name}.
// Variables wins over VariablesText when both are set.
type ImplementationRequest struct {
	Template      string            `json:"template"`
	Variables     map[string]string `json:"variables,omitempty"`
	VariablesText string            `json:"variables_text,omitempty"`
}

// RenameRequest is the body of POST /api/items/{name}/rename.
type RenameRequest struct {
	NewName string `json:"new_name"`
}

// RunJSON is the wire form of a sync run.
type RunJSON struct {
	*core.SyncRun
	Results []*core.ImplementationSync `json:"results,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toSyncReportJSON(r *engine.SyncReport) SyncReportJSON {
	out := SyncReportJSON{
		RunID:     r.RunID,
		Template:  r.Template,
		Synced:    nonNil(r.Synced),
		Unchanged: nonNil(r.Unchanged),
		Skipped:   r.Skipped,
	}
	if len(r.Failed) > 0 {
		out.Failed = make(map[string]string, len(r.Failed))
		for name, err := range r.Failed {
			out.Failed[name] = err.Error()
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), errorResponse{Error: err.Error()})
}

// errorStatus maps engine errors onto HTTP status codes.
func errorStatus(err error) int {
	var verr *engine.ValidationError
	var serr *engine.SyncError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrWrongKind),
		errors.Is(err, core.ErrAlreadyExists),
		errors.Is(err, core.ErrNotLinked):
		return http.StatusConflict
	case errors.As(err, &serr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	templates := s.engine.Templates()
	out := make([]TemplateInfo, 0, len(templates))
	for _, tmpl := range templates {
		vars, err := s.engine.ExtractVariableNames(tmpl.Name())
		if err != nil {
			writeError(w, err)
			return
		}
		impls := []string{}
		for _, impl := range s.engine.Implementations(tmpl.Name()) {
			impls = append(impls, impl.Name())
		}
		out = append(out, TemplateInfo{
			Name:            tmpl.Name(),
			Description:     tmpl.Spec().Description,
			Variables:       vars,
			Implementations: impls,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTemplateVariables(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	vars, err := s.engine.ExtractVariableNames(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"template": name, "variables": vars})
}

func (s *Server) handleValidateTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.engine.ValidateTemplateName(name); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (s *Server) handleSyncTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	report, err := s.engine.SyncTemplate(r.Context(), name, core.TriggerAPI)
	if report == nil {
		writeError(w, err)
		return
	}
	s.publish(report)

	status := http.StatusOK
	if err != nil {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, toSyncReportJSON(report))
}

func (s *Server) handlePutImplementation(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req ImplementationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.engine.ValidateTemplateName(req.Template); err != nil {
		writeError(w, err)
		return
	}

	vars := params.Parse(req.VariablesText)
	if req.Variables != nil {
		var err error
		if vars, err = params.FromMap(req.Variables); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}

	report, err := s.engine.Render(r.Context(), req.Template, name, vars)
	if report != nil {
		s.publish(report)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	result := "synced"
	if len(report.Unchanged) > 0 {
		result = "unchanged"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"implementation": name,
		"template":       req.Template,
		"variables":      vars.Map(),
		"run_id":         report.RunID,
		"result":         result,
	})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req RenameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.NewName == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "new_name is required"})
		return
	}

	if err := s.engine.Rename(r.Context(), name, req.NewName); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"old_name": name, "new_name": req.NewName})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	runs, err := s.engine.History(r.URL.Query().Get("template"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []*core.SyncRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.engine.Store().GetSyncRun(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	results, err := s.engine.RunResults(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RunJSON{SyncRun: run, Results: results})
}
