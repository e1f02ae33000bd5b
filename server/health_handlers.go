package server

import (
	"net/http"
	"time"
)

// HealthHandler reports the gateway's identity and uptime.
func (s *Server) HealthHandler() http.HandlerFunc {
	started := time.Now()
	return func(w http.ResponseWriter, r *http.Request) {
		s.RespondData(w, http.StatusOK, map[string]any{
			"service": s.config.GetAppName(),
			"env":     s.env,
			"uptime":  time.Since(started).Round(time.Second).String(),
		})
	}
}

// LiveHandler answers as long as the process is serving requests.
func (s *Server) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.RespondMessage(w, http.StatusOK, "alive")
	}
}

// ReadyHandler probes the gateway's backing stores. A handle that was not
// configured is reported as skipped rather than failing readiness, so the
// gateway can run against the in-memory fallbacks in development.
func (s *Server) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		ready := true

		if s.db != nil {
			if err := s.db.Ping(r.Context()); err != nil {
				checks["database"] = "unreachable"
				ready = false
			} else {
				checks["database"] = "ok"
			}
		} else {
			checks["database"] = "skipped"
		}

		if s.redis != nil {
			if err := s.redis.Ping(r.Context()).Err(); err != nil {
				checks["redis"] = "unreachable"
				ready = false
			} else {
				checks["redis"] = "ok"
			}
		} else {
			checks["redis"] = "skipped"
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		s.RespondData(w, status, map[string]any{"ready": ready, "checks": checks})
	}
}
