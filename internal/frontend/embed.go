//go:build embed

package frontend

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var viewerFS embed.FS

// Handler serves the embedded preview viewer.
func Handler() http.Handler {
	content, err := fs.Sub(viewerFS, "static")
	if err != nil {
		// static/ is embedded at build time, so Sub cannot fail here.
		panic(err)
	}
	return http.FileServer(http.FS(content))
}
