// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package web

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.astrophena.name/bdaybot/internal/syncx"
)

// HealthTimeout bounds the time all health checks of a request can take.
const HealthTimeout = 5 * time.Second

// Health returns the [HealthHandler] registered on mux at /health, creating it
// if necessary.
func Health(mux *http.ServeMux) *HealthHandler {
	h, pat := mux.Handler(&http.Request{URL: &url.URL{Path: "/health"}})
	if hh, ok := h.(*HealthHandler); ok && pat == "/health" {
		return hh
	}
	ret := &HealthHandler{checks: syncx.Protect(make(checksMap))}
	mux.Handle("/health", ret)
	return ret
}

// HealthHandler reports the health of the running service as JSON.
type HealthHandler struct{ checks *syncx.Protected[checksMap] }

type checksMap = map[string]HealthFunc

// HealthFunc reports the state of a subsystem. It must be safe for concurrent
// use.
type HealthFunc func(ctx context.Context) (status string, ok bool)

// RegisterFunc registers a check under name. It panics if name is taken.
func (h *HealthHandler) RegisterFunc(name string, f HealthFunc) {
	h.checks.Access(func(checks checksMap) {
		if _, dup := checks[name]; dup {
			panic("health: health check function with this name already exists")
		}
		checks[name] = f
	})
}

// HealthResponse is the body of the /health response.
type HealthResponse struct {
	OK     bool                     `json:"ok"`
	Checks map[string]CheckResponse `json:"checks"`
}

// CheckResponse is the state of a single check.
type CheckResponse struct {
	Status string `json:"status"`
	OK     bool   `json:"ok"`
}

// ServeHTTP implements the [http.Handler] interface.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), HealthTimeout)
	defer cancel()

	hr := &HealthResponse{OK: true, Checks: make(map[string]CheckResponse)}
	var checks checksMap
	h.checks.RAccess(func(c checksMap) {
		checks = make(checksMap, len(c))
		for name, f := range c {
			checks[name] = f
		}
	})
	for name, f := range checks {
		status, ok := f(ctx)
		hr.OK = hr.OK && ok
		hr.Checks[name] = CheckResponse{Status: status, OK: ok}
	}

	code := http.StatusOK
	if !hr.OK {
		code = http.StatusInternalServerError
	}
	respondJSON(w, code, hr)
}
