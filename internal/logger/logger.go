// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package logger configures structured logging and keeps recent log lines in
// memory so that they can be inspected over HTTP.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logf is a printf-like logging function. Like [log.Printf], the format need
// not end in a newline. Logf functions must be safe for concurrent use.
type Logf func(format string, args ...any)

// Write implements the [io.Writer] interface.
func (f Logf) Write(p []byte) (n int, err error) {
	f("%s", p)
	return len(p), nil
}

// Options configure a logger created by [New].
type Options struct {
	// Level is the minimum level of records that are written.
	Level slog.Level
	// JSON selects the JSON handler instead of the text one.
	JSON bool
}

// New returns a logger writing to w. The returned level can be changed at
// runtime.
func New(w io.Writer, opts Options) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(opts.Level)
	hopts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	return slog.New(h), lvl
}

// ParseLevel parses a level name such as "debug" or "WARN". An empty string
// means [slog.LevelInfo].
func ParseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}
