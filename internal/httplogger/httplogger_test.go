// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package httplogger

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.astrophena.name/bdaybot/internal/testutil"
)

func TestLoggingTransport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	t.Cleanup(srv.Close)

	cases := map[string]struct {
		level      slog.Level
		wantLogged bool
	}{
		"debug": {level: slog.LevelDebug, wantLogged: true},
		"info":  {level: slog.LevelInfo, wantLogged: false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: tc.level}))
			c := Client(srv.Client(), logger, strings.NewReplacer("s3cret", "[EXPUNGED]"))

			resp, err := c.Get(srv.URL + "/bots3cret/getMe")
			if err != nil {
				t.Fatal(err)
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			testutil.AssertEqual(t, resp.StatusCode, http.StatusTeapot)

			logs := buf.String()
			testutil.AssertNoSubstring(t, logs, "s3cret")
			if !tc.wantLogged {
				testutil.AssertEqual(t, logs, "")
				return
			}
			testutil.AssertSubstring(t, logs, "/bot[EXPUNGED]/getMe")
			testutil.AssertSubstring(t, logs, "status=418")
			testutil.AssertSubstring(t, logs, "method=GET")
		})
	}
}

func TestLoggingTransportError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := &http.Client{Transport: New(failingTransport{}, logger, strings.NewReplacer("s3cret", "[EXPUNGED]"))}

	if _, err := c.Get("http://example.com/bots3cret/getMe"); err == nil {
		t.Fatal("want error")
	}
	testutil.AssertSubstring(t, buf.String(), "connection refused")
	testutil.AssertNoSubstring(t, buf.String(), "s3cret")
}

type failingTransport struct{}

func (failingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	return nil, &mockError{url: r.URL.String()}
}

type mockError struct{ url string }

func (e *mockError) Error() string { return "dial " + e.url + ": connection refused" }
