// Package static provides the embedded single-page chat UI.
package static

import (
	"embed"
	"net/http"
)

//go:embed index.html app.js style.css
var assetsFS embed.FS

// Handler returns an http.Handler serving the embedded UI. index.html is
// served at /.
func Handler() http.Handler {
	return http.FileServer(http.FS(assetsFS))
}
