package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/conneroisu/courseview/internal/dom"
	"github.com/conneroisu/courseview/internal/errors"
	"github.com/conneroisu/courseview/internal/progress"
	"github.com/conneroisu/courseview/internal/registry"
	"github.com/conneroisu/courseview/internal/theme"
	"github.com/conneroisu/courseview/internal/validation"
	"github.com/conneroisu/courseview/internal/version"
)

// ModuleView is one module in the /api/modules listing.
type ModuleView struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Category registry.Category `json:"type"`
	Href     string            `json:"href"`
	Current  bool              `json:"current"`
}

// ProgressView is the completion state of one lesson.
type ProgressView struct {
	Module    string `json:"module"`
	Lesson    int    `json:"lesson"`
	Key       string `json:"key"`
	Completed bool   `json:"completed"`
}

type progressRequest struct {
	Completed bool `json:"completed"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// handleIndex serves the whole surface.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.viewer.Surface().Render(w); err != nil {
		s.logger.Error(r.Context(), err, "Failed to render surface")
	}
}

// handleContent serves only the content area.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	s.writeContentArea(w, r, http.StatusOK)
}

func (s *Server) writeContentArea(w http.ResponseWriter, r *http.Request, status int) {
	markup, err := s.viewer.Surface().InnerHTML(dom.ContentAreaID)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Module-State", s.viewer.State().String())
	if current := s.viewer.Current(); current != "" {
		w.Header().Set("X-Module", current)
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(markup))
}

// handleActivate behaves like a click on the module's navigation entry. A
// failed load is still a 200: the error paragraph is the new content, and
// X-Content-Status carries the status the content source answered with.
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := validation.ValidateModuleID(id); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	// The surface is shared, so a load outlives the request that asked for it.
	err := s.viewer.Activate(context.WithoutCancel(r.Context()), id)
	if stderrors.Is(err, errors.ErrModuleNotFound) {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}
	if status := errors.StatusOf(err); status != 0 {
		w.Header().Set("X-Content-Status", strconv.Itoa(status))
	}

	s.writeContentArea(w, r, http.StatusOK)
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	current := s.viewer.Current()
	entries := s.viewer.Entries()

	modules := make([]ModuleView, 0, len(entries))
	for _, e := range entries {
		modules = append(modules, ModuleView{
			ID:       e.Module.ID,
			Name:     e.Module.Name,
			Category: e.Module.Category,
			Href:     e.Href(),
			Current:  e.Module.ID == current,
		})
	}

	s.writeJSON(w, r, http.StatusOK, modules)
}

// lessonParams validates the {id}/{index} path values.
func (s *Server) lessonParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	id := r.PathValue("id")
	if err := validation.ValidateModuleID(id); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return "", 0, false
	}
	if _, ok := s.viewer.Registry().Lookup(id); !ok {
		s.writeError(w, r, http.StatusNotFound, errors.ModuleNotFound(id))
		return "", 0, false
	}

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		s.writeError(w, r, http.StatusBadRequest,
			errors.NewValidationError(errors.ErrCodeInvalidRequest, "lesson index must be a non-negative integer"))
		return "", 0, false
	}
	return id, index, true
}

// handleGetProgress reads the store directly, so it works for any module.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	id, index, ok := s.lessonParams(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, r, http.StatusOK, ProgressView{
		Module:    id,
		Lesson:    index,
		Key:       progress.Key(id, index),
		Completed: progress.IsCompleted(s.viewer.Store(), id, index),
	})
}

// handleSetProgress checks or unchecks a lesson of the module on the
// surface.
func (s *Server) handleSetProgress(w http.ResponseWriter, r *http.Request) {
	id, index, ok := s.lessonParams(w, r)
	if !ok {
		return
	}

	var req progressRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest,
			errors.NewValidationError(errors.ErrCodeInvalidRequest, "request body must be {\"completed\": bool}"))
		return
	}

	ctrl, err := s.viewer.SetProgress(r.Context(), id, index, req.Completed)
	switch {
	case stderrors.Is(err, errors.NewValidationError(errors.ErrCodeModuleNotLoaded, "")):
		s.writeError(w, r, http.StatusConflict, err)
		return
	case stderrors.Is(err, errors.NewValidationError(errors.ErrCodeLessonNotFound, "")):
		s.writeError(w, r, http.StatusNotFound, err)
		return
	case err != nil:
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, ProgressView{
		Module:    id,
		Lesson:    index,
		Key:       ctrl.Key(),
		Completed: ctrl.Checked(),
	})
}

func (s *Server) handleThemeToggle(w http.ResponseWriter, r *http.Request) {
	next, err := s.viewer.ToggleTheme(r.Context())
	if err != nil {
		// The surface already shows the new theme; only persisting failed.
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]string{"theme": string(next)})
}

// handleHighlightCSS serves the chroma classes for the applied theme.
func (s *Server) handleHighlightCSS(w http.ResponseWriter, r *http.Request) {
	style := s.config.Highlight.LightStyle
	if s.viewer.Theme().Current() == theme.Dark {
		style = s.config.Highlight.DarkStyle
	}

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := s.highlighter.WriteCSS(w, style); err != nil {
		s.logger.Error(r.Context(), err, "Failed to write highlight stylesheet", "style", style)
	}
}

// handleHealth returns the server health status for health checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"version":    version.GetShortVersion(),
		"build_info": version.GetBuildInfo(),
		"checks": map[string]interface{}{
			"viewer": map[string]interface{}{
				"state":  s.viewer.State().String(),
				"module": s.viewer.Current(),
			},
			"registry":  map[string]interface{}{"modules": s.viewer.Registry().Count()},
			"websocket": map[string]interface{}{"clients": s.hub.Clients()},
			"watcher":   map[string]interface{}{"enabled": s.watcher != nil},
		},
	}

	s.writeJSON(w, r, http.StatusOK, health)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(r.Context(), err, "Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	var ve *errors.ViewerError
	if stderrors.As(err, &ve) {
		resp.Error = ve.Message
		resp.Code = ve.Code
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), err, "Request failed", "path", r.URL.Path)
	}
	s.writeJSON(w, r, status, resp)
}
