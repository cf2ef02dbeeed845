// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.astrophena.name/bdaybot/internal/testutil"
)

func send(t testing.TB, h http.Handler, method, path string, wantStatus int) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	if wantStatus != rec.Code {
		t.Fatalf("want response code %d, got %d", wantStatus, rec.Code)
	}
	return rec.Body.String()
}

func TestRespondJSONError(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err        error
		wantStatus int
	}{
		"plain error":  {err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
		"status error": {err: ErrNotFound, wantStatus: http.StatusNotFound},
		"wrapped":      {err: fmt.Errorf("%w: wrong secret", ErrUnauthorized), wantStatus: http.StatusUnauthorized},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				RespondJSONError(nil, w, tc.err)
			})
			body := send(t, h, http.MethodGet, "/", tc.wantStatus)
			got := testutil.UnmarshalJSON[errorResponse](t, []byte(body))
			testutil.AssertEqual(t, got, errorResponse{Status: "error", Error: tc.err.Error()})
		})
	}
}

func TestRespondJSONMarshalError(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RespondJSON(w, map[string]any{"ch": make(chan int)})
	})
	body := send(t, h, http.MethodGet, "/", http.StatusInternalServerError)
	testutil.AssertSubstring(t, body, "JSON marshal error")
}

func TestHealth(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		checks     map[string]HealthFunc
		want       HealthResponse
		wantStatus int
	}{
		"no checks": {
			want:       HealthResponse{OK: true, Checks: map[string]CheckResponse{}},
			wantStatus: http.StatusOK,
		},
		"store ok": {
			checks: map[string]HealthFunc{
				"store": func(context.Context) (string, bool) { return "ok", true },
			},
			want: HealthResponse{OK: true, Checks: map[string]CheckResponse{
				"store": {Status: "ok", OK: true},
			}},
			wantStatus: http.StatusOK,
		},
		"one failing": {
			checks: map[string]HealthFunc{
				"store":    func(context.Context) (string, bool) { return "ok", true },
				"telegram": func(context.Context) (string, bool) { return "unreachable", false },
			},
			want: HealthResponse{OK: false, Checks: map[string]CheckResponse{
				"store":    {Status: "ok", OK: true},
				"telegram": {Status: "unreachable", OK: false},
			}},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			mux := http.NewServeMux()
			h := Health(mux)
			for name, f := range tc.checks {
				h.RegisterFunc(name, f)
			}
			// Health returns the already registered handler.
			if Health(mux) != h {
				t.Fatal("Health must return the existing handler")
			}
			body := send(t, mux, http.MethodGet, "/health", tc.wantStatus)
			testutil.AssertEqual(t, testutil.UnmarshalJSON[HealthResponse](t, []byte(body)), tc.want)
		})
	}
}

func TestHealthDuplicatePanics(t *testing.T) {
	t.Parallel()

	h := Health(http.NewServeMux())
	f := func(context.Context) (string, bool) { return "ok", true }
	h.RegisterFunc("store", f)
	defer func() {
		if recover() == nil {
			t.Fatal("RegisterFunc must panic on duplicate names")
		}
	}()
	h.RegisterFunc("store", f)
}

func TestDebugger(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	d := Debugger(mux)
	d.Handle("logs", "Recent logs", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "log line\n")
	}))

	idx := testutil.UnmarshalJSON[debugIndex](t, []byte(send(t, mux, http.MethodGet, "/debug/", http.StatusOK)))
	testutil.AssertEqual(t, idx.Paths, []string{"/debug/logs", "/debug/pprof/"})
	testutil.AssertEqual(t, send(t, mux, http.MethodGet, "/debug/logs", http.StatusOK), "log line\n")
}

func TestProtectDebug(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	Debugger(mux)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "root") })
	h := protectDebug(func(r *http.Request) bool { return r.Header.Get("X-Debug-Token") == "s3cret" }, mux)

	send(t, h, http.MethodGet, "/debug/", http.StatusNotFound)
	testutil.AssertEqual(t, send(t, h, http.MethodGet, "/", http.StatusOK), "root")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/", nil)
	req.Header.Set("X-Debug-Token", "s3cret")
	h.ServeHTTP(rec, req)
	testutil.AssertEqual(t, rec.Code, http.StatusOK)
}

func TestListenAndServe(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	Health(mux)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan net.Addr, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- ListenAndServe(ctx, &ListenAndServeConfig{
			Addr:  "localhost:0",
			Mux:   mux,
			Ready: func(addr net.Addr) { ready <- addr },
		})
	}()

	var addr net.Addr
	select {
	case addr = <-ready:
	case err := <-errCh:
		t.Fatal(err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr.String() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	testutil.AssertEqual(t, resp.StatusCode, http.StatusOK)

	cancel()
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
}

func TestListenAndServeConfigErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if err := ListenAndServe(ctx, &ListenAndServeConfig{Mux: http.NewServeMux()}); !errors.Is(err, errNoAddr) {
		t.Fatalf("want %v, got %v", errNoAddr, err)
	}
	if err := ListenAndServe(ctx, &ListenAndServeConfig{Addr: "localhost:0"}); !errors.Is(err, errNilMux) {
		t.Fatalf("want %v, got %v", errNilMux, err)
	}
}
