// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package web

import (
	"net/http"
	"net/http/pprof"
	"slices"

	"go.astrophena.name/bdaybot/internal/syncx"
	"go.astrophena.name/bdaybot/internal/version"
)

// DebugHandler serves the /debug/ index listing registered debug endpoints,
// and the pprof handlers.
type DebugHandler struct {
	mux   *http.ServeMux
	links *syncx.Protected[map[string]string]
}

// Debugger registers the debug index and pprof on mux.
func Debugger(mux *http.ServeMux) *DebugHandler {
	d := &DebugHandler{mux: mux, links: syncx.Protect(make(map[string]string))}
	mux.Handle("/debug/{$}", d)
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	d.link("pprof/", "Go profiler")
	return d
}

// Handle registers h at /debug/<slug> and lists it on the index page.
func (d *DebugHandler) Handle(slug, desc string, h http.Handler) {
	d.mux.Handle("/debug/"+slug, h)
	d.link(slug, desc)
}

func (d *DebugHandler) link(slug, desc string) {
	d.links.Access(func(m map[string]string) { m[slug] = desc })
}

type debugIndex struct {
	Version version.Info      `json:"version"`
	Links   map[string]string `json:"links"`
	Paths   []string          `json:"paths"`
}

// ServeHTTP implements the [http.Handler] interface.
func (d *DebugHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	idx := debugIndex{Version: version.Version(), Links: make(map[string]string)}
	d.links.RAccess(func(m map[string]string) {
		for slug, desc := range m {
			idx.Links["/debug/"+slug] = desc
			idx.Paths = append(idx.Paths, "/debug/"+slug)
		}
	})
	slices.Sort(idx.Paths)
	RespondJSON(w, idx)
}
