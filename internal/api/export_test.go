package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/groundchat/groundchat/internal/chat"
)

func TestExportSession_Markdown(t *testing.T) {
	ts, store := newTestServer(t, &scriptedStreamer{})
	id := store.ActiveID()
	store.RenameSession(id, "Trip Planning")
	store.AppendMessage(id, chat.Message{ID: "m1", Role: chat.RoleUser, Text: "best beaches?"})
	store.AppendMessage(id, chat.Message{
		ID:   "m2",
		Role: chat.RoleModel,
		Text: "Kenting is popular.",
		Sources: []chat.GroundingSource{
			{Type: chat.SourceWeb, URI: "https://example.com", Title: "Travel Guide"},
		},
	})

	resp, err := http.Get(ts.URL + "/api/v1/sessions/" + id + "/export")
	if err != nil {
		t.Fatalf("GET export error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "trip-planning.md") {
		t.Errorf("disposition = %q", resp.Header.Get("Content-Disposition"))
	}

	body, _ := io.ReadAll(resp.Body)
	md := string(body)
	for _, want := range []string{
		"# Trip Planning",
		"## User",
		"best beaches?",
		"## Assistant",
		"Kenting is popular.",
		"- [Travel Guide](https://example.com)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestExportSession_JSON(t *testing.T) {
	ts, store := newTestServer(t, &scriptedStreamer{})
	id := store.ActiveID()
	store.AppendMessage(id, chat.Message{ID: "m1", Role: chat.RoleUser, Text: "hello"})

	resp, err := http.Get(ts.URL + "/api/v1/sessions/" + id + "/export?format=json")
	if err != nil {
		t.Fatalf("GET export error: %v", err)
	}
	defer resp.Body.Close()

	var sess chat.Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		t.Fatalf("decoding export: %v", err)
	}
	if sess.ID != id || len(sess.Messages) != 1 {
		t.Errorf("exported session = %+v", sess)
	}
}

func TestExportSession_Errors(t *testing.T) {
	ts, store := newTestServer(t, &scriptedStreamer{})

	resp, _ := http.Get(ts.URL + "/api/v1/sessions/nope/export")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", resp.StatusCode)
	}

	resp, _ = http.Get(ts.URL + "/api/v1/sessions/" + store.ActiveID() + "/export?format=pdf")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad format status = %d, want 400", resp.StatusCode)
	}
}

func TestExportFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Trip Planning", "trip-planning"},
		{"New Chat", "new-chat"},
		{"  weird/../name!  ", "weirdname"},
		{"中文", "chat"},
		{"", "chat"},
	}

	for _, tt := range tests {
		if got := exportFilename(tt.in); got != tt.want {
			t.Errorf("exportFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
