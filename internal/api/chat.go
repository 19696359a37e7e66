package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/groundchat/groundchat/internal/chat"
)

// chatRequest is the body of POST /api/v1/chat. Image, when present, is a
// data URI (data:<mime>;base64,<payload>).
type chatRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	Image     string `json:"image,omitempty"`
}

// chunkEvent streams the folded response so far: full accumulated text and
// the deduplicated source set. Clients replace, not append.
type chunkEvent struct {
	Text    string                 `json:"text"`
	Sources []chat.GroundingSource `json:"sources,omitempty"`
}

type doneEvent struct {
	UserMessageID  string `json:"userMessageId"`
	ModelMessageID string `json:"modelMessageId"`
}

type errorEvent struct {
	Message string `json:"message"`
}

// chatHandler drives a send over SSE.
type chatHandler struct {
	store   *chat.Store
	service *chat.Service
	logger  *slog.Logger
}

// sendChat handles POST /api/v1/chat.
//
// Rejections (busy, unknown session, empty prompt, bad image) are plain
// JSON errors issued before any SSE bytes. Once headers are committed the
// response is a text/event-stream of chunk events followed by done, or an
// error event when the model stream fails mid-way. A send that loses the
// in-flight race after the precheck also surfaces as an error event, since
// the status line is already gone.
func (h *chatHandler) sendChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, 16<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	var image *chat.Image
	if req.Image != "" {
		img, err := chat.ParseDataURI(req.Image)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_image", "image must be a base64 data URI")
			return
		}
		image = &img
	}

	if h.service.Sending() {
		writeError(w, http.StatusConflict, "busy", "a send is already in flight")
		return
	}
	if _, ok := h.store.Session(req.SessionID); !ok {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	if strings.TrimSpace(req.Text) == "" && image == nil {
		writeError(w, http.StatusBadRequest, "empty_prompt", "prompt is empty")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("response writer does not support flushing")
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	result, err := h.service.Send(r.Context(), req.SessionID, req.Text, image, func(d chat.Delta) {
		writeEvent(w, flusher, "chunk", chunkEvent{Text: d.Text, Sources: d.Sources})
	})
	if err != nil {
		writeEvent(w, flusher, "error", errorEvent{Message: err.Error()})
		return
	}

	writeEvent(w, flusher, "done", doneEvent{
		UserMessageID:  result.UserMessageID,
		ModelMessageID: result.ModelMessageID,
	})
}

// writeEvent writes one SSE event and flushes it.
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to encode SSE event", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}
