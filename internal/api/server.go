// Package api serves the daemon's running state and accepts triggers over
// loopback HTTP, for tiles, widgets and scripts.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/blackwell-systems/memprune/internal/logging"
	"github.com/blackwell-systems/memprune/internal/meminfo"
	"github.com/blackwell-systems/memprune/internal/scheduler"
)

const shutdownTimeout = 5 * time.Second

// StateReader returns the scheduler's running state.
type StateReader interface {
	Snapshot() scheduler.StateView
}

// MemoryReader returns current memory totals.
type MemoryReader func() (meminfo.Info, error)

// Memory is the memory section of a status response.
type Memory struct {
	TotalKb     uint64 `json:"total_kb"`
	AvailableKb uint64 `json:"available_kb"`
	UsedPercent int    `json:"used_percent"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	State  scheduler.StateView `json:"state"`
	Memory *Memory             `json:"memory,omitempty"`
}

// Server is the loopback status endpoint.
type Server struct {
	addr    string
	state   StateReader
	trigger scheduler.Triggerer
	memory  MemoryReader
	log     *logging.Logger

	srv *http.Server
	ln  net.Listener
}

// New creates a Server. memory may be nil.
func New(addr string, state StateReader, trigger scheduler.Triggerer, memory MemoryReader, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	return &Server{addr: addr, state: state, trigger: trigger, memory: memory, log: log}
}

// NewRouter builds the route table.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/trigger/{kind}", s.handleTrigger).Methods("POST")
	return r
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("status server: %v", err)
		}
	}()
	s.log.Info("status server listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{State: s.state.Snapshot()}
	if s.memory != nil {
		if info, err := s.memory(); err == nil {
			resp.Memory = &Memory{
				TotalKb:     info.TotalKb,
				AvailableKb: info.AvailableKb,
				UsedPercent: info.UsedPercent(),
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, err := scheduler.ParseKind(vars["kind"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	if err := s.trigger.Trigger(kind); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, scheduler.ErrBelowThreshold), errors.Is(err, scheduler.ErrDisabled):
			status = http.StatusConflict
		case errors.Is(err, scheduler.ErrBusy):
			status = http.StatusTooManyRequests
		case errors.Is(err, scheduler.ErrStopped):
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "trigger": string(kind)})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
