package server

import (
	"net/http"
	"time"
)

// Pre-allocated response body and header value slice.
// okBody avoids a []byte("ok") heap escape per call.
// plainCT avoids the []string{v} alloc from Header.Set (see respond.go:jsonCT).
var (
	okBody       = []byte("ok")
	notReadyBody = []byte("not ready")
	plainCT      = []string{"text/plain"}
)

// serviceName is reported by the banner endpoint.
const serviceName = "ryuka-api"

type banner struct {
	Status string `json:"status"`
	Name   string `json:"name"`
}

type healthStatus struct {
	Status    string  `json:"status"`
	Uptime    float64 `json:"uptime"` // seconds
	Timestamp int64   `json:"timestamp"`
}

func (s *server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, banner{Status: "ok", Name: serviceName})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()
	writeJSON(w, http.StatusOK, healthStatus{
		Status:    "healthy",
		Uptime:    now.Sub(s.deps.StartedAt).Seconds(),
		Timestamp: now.UnixMilli(),
	})
}

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(http.StatusOK)
	w.Write(okBody)
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.ReadyCheck != nil {
		if err := s.deps.ReadyCheck(r.Context()); err != nil {
			w.Header()["Content-Type"] = plainCT
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write(notReadyBody)
			return
		}
	}
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(http.StatusOK)
	w.Write(okBody)
}

func (s *server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, failure("not_found", "endpoint "+r.URL.Path+" not found", ""))
}

func (s *server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, failure("method_not_allowed", r.Method+" is not allowed on "+r.URL.Path, ""))
}
