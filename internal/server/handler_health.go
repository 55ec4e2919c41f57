package server

import (
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Store     string `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	resp := healthResponse{
		Status:    "healthy",
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Store:     "ok",
	}
	// Store liveness probe.
	if _, _, err := s.store.ListRuns(r.Context(), listProbe); err != nil {
		s.logger.Warn("store health check failed", "error", err)
		resp.Status = "degraded"
		resp.Store = "unavailable"
	}
	respondOK(w, reqID, resp)
}
