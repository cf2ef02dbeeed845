// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// ShutdownTimeout is how long [ListenAndServe] waits for in-flight requests
// after its context is done.
const ShutdownTimeout = 30 * time.Second

// ListenAndServeConfig configures the server started by [ListenAndServe].
type ListenAndServeConfig struct {
	// Addr is a network address to listen on (in the form of "host:port").
	Addr string
	// Mux is the handler to serve.
	Mux *http.ServeMux
	// Logger receives server logs. If nil, slog.Default is used.
	Logger *slog.Logger
	// DebugAuth is called for every request under /debug/. Requests it denies
	// get a 404. If nil, all access is allowed.
	DebugAuth func(r *http.Request) bool
	// Ready, if set, is called with the listening address once the server
	// accepts connections.
	Ready func(addr net.Addr)
}

var (
	errNoAddr = errors.New("c.Addr is empty")
	errNilMux = errors.New("c.Mux is nil")
)

// ListenAndServe serves c.Mux on c.Addr until ctx is done, then shuts the
// server down gracefully.
func ListenAndServe(ctx context.Context, c *ListenAndServeConfig) error {
	if c.Addr == "" {
		return errNoAddr
	}
	if c.Mux == nil {
		return errNilMux
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	l, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer l.Close()
	logger.Info("listening", "addr", l.Addr().String())

	s := &http.Server{
		Handler:           protectDebug(c.DebugAuth, c.Mux),
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if c.Ready != nil {
		c.Ready(l.Addr())
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

func protectDebug(auth func(*http.Request) bool, next http.Handler) http.Handler {
	if auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Pretend that debug endpoints don't exist.
		if strings.HasPrefix(r.URL.Path, "/debug/") && !auth(r) {
			RespondJSONError(nil, w, ErrNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
