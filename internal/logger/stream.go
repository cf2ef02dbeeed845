// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package logger

import (
	"container/ring"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Streamer is an [io.Writer] that remembers the most recent log lines. As an
// [http.Handler] it serves a snapshot of them, or follows new lines when the
// client asks for text/event-stream or passes ?follow=1.
type Streamer interface {
	io.Writer
	http.Handler

	// Lines returns the remembered lines, oldest first.
	Lines() []string

	// Stream returns a channel receiving newly written lines. The returned
	// function deregisters and closes the channel.
	Stream() (<-chan string, func())
}

// NewStreamer returns a [Streamer] remembering up to size lines.
func NewStreamer(size int) Streamer {
	return &ringStreamer{
		size:    size,
		r:       ring.New(size),
		streams: make(map[chan string]struct{}),
	}
}

type ringStreamer struct {
	mu      sync.RWMutex
	size    int
	partial string
	r       *ring.Ring
	streams map[chan string]struct{}
}

func (s *ringStreamer) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := s.partial + string(b)
	for {
		line, rest, ok := strings.Cut(text, "\n")
		if !ok {
			break
		}
		line += "\n"
		s.r.Value = line
		s.r = s.r.Next()
		for stream := range s.streams {
			select {
			case stream <- line:
			default:
				// Slow reader misses the line.
			}
		}
		text = rest
	}
	s.partial = text
	return len(b), nil
}

func (s *ringStreamer) Lines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := make([]string, 0, s.size)
	s.r.Do(func(x any) {
		if x != nil {
			lines = append(lines, x.(string))
		}
	})
	return lines
}

func (s *ringStreamer) Stream() (<-chan string, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := make(chan string, s.size+1)
	s.streams[stream] = struct{}{}

	var once sync.Once
	return stream, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.streams, stream)
			close(stream)
		})
	}
}

func (s *ringStreamer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")

	sse := strings.Contains(strings.ToLower(r.Header.Get("Accept")), "text/event-stream")
	if !sse && r.URL.Query().Get("follow") == "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, line := range s.Lines() {
			io.WriteString(w, line)
		}
		return
	}

	if sse {
		w.Header().Set("Content-Type", "text/event-stream")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	flush := func() {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
	flush()

	stream, done := s.Stream()
	defer done()

	for {
		select {
		case line := <-stream:
			if sse {
				// https://developer.mozilla.org/en-US/docs/Web/API/Server-sent_events/Using_server-sent_events
				fmt.Fprintf(w, "event: logline\ndata: %s\n", strings.TrimSuffix(line, "\n"))
			} else {
				io.WriteString(w, line)
			}
			flush()
		case <-r.Context().Done():
			return
		}
	}
}
