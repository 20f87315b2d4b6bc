// Package web serves the embedded single-page panel UI.
package web

import (
	"io/fs"
	"net/http"
)

// RegisterRoutes registers the panel UI routes on the provided mux.
// The panel shell is served at / and its assets at /static/*, all from the
// embedded filesystem so the binary is self-contained.
func RegisterRoutes(mux *http.ServeMux) {
	staticFS, _ := fs.Sub(StaticFS, "static")

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, staticFS, "index.html")
	})
}
