// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package healthcheck

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
)

type Status int32

const (
	StatusStarting Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

type Response struct {
	Healthy bool `json:"healthy"`
	// Failing names the readiness checks that did not pass.
	Failing []string `json:"failing,omitempty"`
}

// Check reports whether one dependency of the server is usable. A nil
// error means ready.
type Check func() error

// Checker tracks process health and the readiness checks served on
// /healthz, /readyz and /livez.
type Checker struct {
	status atomic.Int32
	mu     sync.RWMutex
	checks map[string]Check
}

func New() *Checker {
	return &Checker{checks: map[string]Check{}}
}

func (c *Checker) SetStatus(status Status) {
	c.status.Store(int32(status))
	slog.Debug("Health check status updated", slog.String("status", status.String()))
}

func (c *Checker) GetStatus() Status {
	return Status(c.status.Load())
}

// AddReadyCheck registers a named readiness check, replacing any check
// with the same name.
func (c *Checker) AddReadyCheck(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Failing runs every readiness check and returns the names of those that
// failed, sorted.
func (c *Checker) Failing() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var failing []string
	for name, check := range c.checks {
		if err := check(); err != nil {
			slog.Debug("Readiness check failed", slog.String("check", name), slog.Any("error", err))
			failing = append(failing, name)
		}
	}
	slices.Sort(failing)
	return failing
}

// IsReady reports whether the process is healthy and all checks pass.
func (c *Checker) IsReady() bool {
	return c.GetStatus() == StatusHealthy && len(c.Failing()) == 0
}

// Register mounts the health endpoints on mux.
func (c *Checker) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", c.healthzHandler)
	mux.HandleFunc("GET /readyz", c.readyzHandler)
	mux.HandleFunc("GET /livez", c.livezHandler)
}

func (c *Checker) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeResponse(w, Response{Healthy: c.GetStatus() == StatusHealthy})
}

func (c *Checker) readyzHandler(w http.ResponseWriter, _ *http.Request) {
	failing := c.Failing()
	ready := c.GetStatus() == StatusHealthy && len(failing) == 0
	writeResponse(w, Response{Healthy: ready, Failing: failing})
}

func (c *Checker) livezHandler(w http.ResponseWriter, _ *http.Request) {
	writeResponse(w, Response{Healthy: c.GetStatus() != StatusUnhealthy})
}

func writeResponse(w http.ResponseWriter, response Response) {
	w.Header().Set("Content-Type", "application/json")

	if response.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode health check response", slog.Any("error", err))
	}
}
