package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/groundchat/groundchat/internal/chat"
)

// exportSession handles GET /api/v1/sessions/{id}/export.
//
// format=json returns the raw session object; format=markdown (the
// default) renders the transcript as a downloadable document.
func (h *sessionHandler) exportSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.store.Session(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}

	filename := exportFilename(sess.Title)

	switch format := r.URL.Query().Get("format"); format {
	case "", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".md"))
		if _, err := w.Write([]byte(renderMarkdown(sess))); err != nil {
			h.logger.Debug("export write failed", "error", err)
		}
	case "json":
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".json"))
		writeJSON(w, http.StatusOK, sess)
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "format must be markdown or json")
	}
}

// renderMarkdown formats a session transcript as a Markdown document.
// Images are noted but not embedded; grounding sources become a link list
// under each model turn.
func renderMarkdown(sess chat.Session) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n", sess.Title)

	for _, msg := range sess.Messages {
		switch msg.Role {
		case chat.RoleUser:
			b.WriteString("\n## User\n\n")
		case chat.RoleModel:
			b.WriteString("\n## Assistant\n\n")
		default:
			fmt.Fprintf(&b, "\n## %s\n\n", msg.Role)
		}

		if msg.Image != "" {
			b.WriteString("*[attached image]*\n\n")
		}
		if msg.Text != "" {
			b.WriteString(msg.Text)
			b.WriteString("\n")
		}
		if len(msg.Sources) > 0 {
			b.WriteString("\nSources:\n\n")
			for _, src := range msg.Sources {
				fmt.Fprintf(&b, "- [%s](%s)\n", src.Title, src.URI)
			}
		}
	}

	return b.String()
}

// exportFilename derives a safe download name from a session title.
func exportFilename(title string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, strings.TrimSpace(title))
	mapped = strings.Trim(mapped, "-")
	if mapped == "" {
		return "chat"
	}
	return strings.ToLower(mapped)
}
