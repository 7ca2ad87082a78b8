package server

import (
	"io/fs"
	"net/http"
	"strings"
)

// handleSPA serves the built browser client from fsys, falling back to
// index.html for any path that doesn't match a real file so the client can
// route /play?minPop=... itself.
func handleSPA(fsys fs.FS) http.HandlerFunc {
	fileServer := http.FileServerFS(fsys)

	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name == "" {
			name = "."
		}
		if info, err := fs.Stat(fsys, name); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}

		http.ServeFileFS(w, r, fsys, "index.html")
	}
}
