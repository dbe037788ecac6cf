// Package ops exposes the operational HTTP surface (health/stats) that runs
// alongside the websocket gateway, following the teacher's createHandler
// /health endpoint (internal/game/server.go) generalized to the richer
// checks SPEC_FULL.md §12 asks for.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aethermoor/server/internal/store"
	"github.com/aethermoor/server/internal/world"
)

// Server is the secondary HTTP server: /health for liveness/readiness probes,
// /stats for a lightweight operator snapshot. It never touches the world
// lock directly — both routes go through accessor methods the world/gateway
// already expose.
type Server struct {
	st  store.Store
	w   *world.World
	mux *http.ServeMux
}

func New(st store.Store, w *world.World) *Server {
	s := &Server{st: st, w: w, mux: http.NewServeMux()}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/stats", s.handleStats)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type healthResponse struct {
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	ok, detail := s.st.HealthCheck(ctx)
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(healthResponse{Status: "unhealthy", Detail: detail})
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(healthResponse{Status: "ok"})
}

type statsResponse struct {
	Players    int   `json:"players"`
	Monsters   int   `json:"monsters"`
	TickCount  uint64 `json:"tickCount"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := statsResponse{
		Players:   s.w.Players().Count(),
		Monsters:  s.w.Monsters().Count(),
		TickCount: s.w.TickCount(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
