package api

import "net/http"

// health is a simple liveness endpoint for probes and the UI's startup
// check. Returns 200 OK with {"status":"ok"}.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
