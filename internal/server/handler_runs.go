package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/me/cnvkit/pkg/model"
)

var listProbe = model.ListOptions{Limit: 1}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	runs, total, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}

	respondList(w, reqID, runs, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+len(runs) < total,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}
	respondOK(w, reqID, run)
}

func (s *Server) handleGetTaskLogs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	stage := chi.URLParam(r, "stage")

	tasks, err := s.store.ListTasksByRun(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	for _, t := range tasks {
		if t.Stage != stage {
			continue
		}
		respondOK(w, reqID, map[string]any{
			"task_id":   t.ID,
			"stage":     t.Stage,
			"state":     t.State,
			"stdout":    t.Stdout,
			"stderr":    t.Stderr,
			"exit_code": t.ExitCode,
		})
		return
	}
	respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("task", id+"/"+stage))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, RequestIDFromContext(r.Context()), http.StatusNotFound,
		model.NewNotFoundError("route", r.URL.Path))
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, RequestIDFromContext(r.Context()), http.StatusMethodNotAllowed,
		&model.APIError{Code: model.ErrValidation, Message: r.Method + " is not supported; the API is read-only"})
}

// parseListOptions reads limit, offset and state from the query string.
func parseListOptions(r *http.Request) (model.ListOptions, *model.APIError) {
	opts := model.DefaultListOptions()
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, &model.APIError{Code: model.ErrValidation, Message: "limit must be an integer"}
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, &model.APIError{Code: model.ErrValidation, Message: "offset must be an integer"}
		}
		opts.Offset = n
	}
	if v := q.Get("state"); v != "" {
		st, err := model.ParseRunState(v)
		if err != nil {
			return opts, &model.APIError{Code: model.ErrValidation, Message: err.Error()}
		}
		opts.State = st
	}
	opts.Clamp()
	return opts, nil
}
