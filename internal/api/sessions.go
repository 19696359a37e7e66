package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/groundchat/groundchat/internal/chat"
)

// sessionHandler exposes the session store over JSON.
//
// All mutations go through store operations; the handler never touches
// session state directly. Unknown ids are silent no-ops at the store level,
// but handlers answer 404 where the client can act on it.
type sessionHandler struct {
	store   *chat.Store
	service *chat.Service
	logger  *slog.Logger
}

// stateResponse is the full controller snapshot the front end renders from.
type stateResponse struct {
	Sessions        []chat.Session `json:"sessions"`
	ActiveSessionID string         `json:"activeSessionId,omitempty"`
	Sending         bool           `json:"sending"`
	Error           string         `json:"error,omitempty"`
}

// getState returns sessions, active selection, the sending flag, and the
// user-visible error string.
func (h *sessionHandler) getState(w http.ResponseWriter, _ *http.Request) {
	sessions, activeID := h.store.Snapshot()
	writeJSON(w, http.StatusOK, stateResponse{
		Sessions:        sessions,
		ActiveSessionID: activeID,
		Sending:         h.service.Sending(),
		Error:           h.service.LastError(),
	})
}

// createSession inserts a new session at the front and makes it active.
func (h *sessionHandler) createSession(w http.ResponseWriter, _ *http.Request) {
	id := h.store.CreateSession()
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// deleteSession removes a session; active selection falls back to the
// first remaining session.
func (h *sessionHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	h.store.DeleteSession(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// activateSession switches the active session.
func (h *sessionHandler) activateSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.store.Session(id); !ok {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	h.store.SetActive(id)
	w.WriteHeader(http.StatusNoContent)
}

// sessionPatch carries field-wise session intents. Absent fields are left
// untouched; title and isRenaming may arrive together or separately.
type sessionPatch struct {
	Title        *string             `json:"title"`
	IsRenaming   *bool               `json:"isRenaming"`
	Config       *chat.Config        `json:"config"`
	LocalSources *[]chat.LocalSource `json:"localSources"`
}

// patchSession applies rename / renaming-flag / config / local-source
// intents to one session.
func (h *sessionHandler) patchSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.store.Session(id); !ok {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}

	var patch sessionPatch
	r.Body = http.MaxBytesReader(w, r.Body, 4<<20)
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	if patch.Title != nil {
		h.store.RenameSession(id, *patch.Title)
	}
	if patch.IsRenaming != nil {
		h.store.SetRenaming(id, *patch.IsRenaming)
	}
	if patch.Config != nil {
		h.store.UpdateConfig(id, *patch.Config)
	}
	if patch.LocalSources != nil {
		sources := *patch.LocalSources
		for i := range sources {
			if sources[i].ID == "" {
				sources[i].ID = chat.NewLocalSourceID()
			}
		}
		h.store.UpdateLocalSources(id, sources)
	}

	sess, ok := h.store.Session(id)
	if !ok {
		// Deleted between the check and the patch; the store treated the
		// mutations as no-ops.
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
