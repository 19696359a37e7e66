package chat

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/groundchat/groundchat/internal/log"
)

// SessionsKey is the blob store entry holding the serialized session list.
const SessionsKey = "chatSessions"

// TitleMaxLength caps auto-derived session titles.
const TitleMaxLength = 40

// Blob is the persistence collaborator: a key-value blob store with
// synchronous get/set semantics.
type Blob interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Store owns the ordered session collection and the active selection.
//
// Every mutation persists the full collection before the store lock is
// released, so the persisted blob always reflects the latest committed
// state; there is no deferred or debounced write path.
//
// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions []Session // Ordered, newest first
	activeID string    // Empty when no session is active
	renamed  map[string]bool // In-memory only; a pin on an empty session does not survive a restart
	blob     Blob
	logger   log.Logger
}

// NewStore creates a Store backed by the given blob store.
func NewStore(blob Blob, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		renamed: make(map[string]bool),
		blob:    blob,
		logger:  logger,
	}
}

// Load restores the session collection from the blob store. A missing or
// unparsable blob is treated as "no sessions yet" and a single default
// session is created. Load never fails.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok, err := s.blob.Get(SessionsKey)
	if err != nil {
		s.logger.Warn("loading sessions", "error", err)
	}
	if ok && err == nil {
		var sessions []Session
		if err := json.Unmarshal(data, &sessions); err != nil {
			s.logger.Warn("parsing saved sessions, starting fresh", "error", err)
		} else if len(sessions) > 0 {
			s.sessions = sessions
			s.activeID = sessions[0].ID
			return
		}
	}

	sess := NewSession()
	s.sessions = []Session{sess}
	s.activeID = sess.ID
	s.persistLocked()
}

// CreateSession inserts a new empty session at the front of the collection,
// makes it active, and returns its id.
func (s *Store) CreateSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := NewSession()
	s.sessions = append([]Session{sess}, s.sessions...)
	s.activeID = sess.ID
	s.persistLocked()
	return sess.ID
}

// DeleteSession removes the session. If it was active, the first remaining
// session becomes active, or none if the collection is empty.
func (s *Store) DeleteSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	delete(s.renamed, id)

	if s.activeID == id {
		if len(s.sessions) > 0 {
			s.activeID = s.sessions[0].ID
		} else {
			s.activeID = ""
		}
	}
	s.persistLocked()
}

// SetActive switches the active session. Unknown ids are ignored.
func (s *Store) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(id) < 0 {
		return
	}
	s.activeID = id
}

// RenameSession sets the title verbatim after trimming; blank titles are a
// no-op. A manual rename pins the title against auto-derivation and clears
// the renaming flag.
func (s *Store) RenameSession(id, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.sessions[idx].Title = title
	s.sessions[idx].IsRenaming = false
	s.renamed[id] = true
	s.persistLocked()
}

// SetRenaming toggles the transient rename-in-progress flag.
func (s *Store) SetRenaming(id string, renaming bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.sessions[idx].IsRenaming = renaming
	s.persistLocked()
}

// UpdateConfig replaces the session's generation settings wholesale.
func (s *Store) UpdateConfig(id string, cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.sessions[idx].Config = cfg
	s.persistLocked()
}

// UpdateLocalSources replaces the session's local source list wholesale.
func (s *Store) UpdateLocalSources(id string, sources []LocalSource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	if sources == nil {
		sources = []LocalSource{}
	}
	s.sessions[idx].LocalSources = sources
	s.persistLocked()
}

// AppendMessage appends a message to the session's history.
//
// Appending the first message to a session that was never manually renamed
// derives the title from the first 40 characters of the trimmed text
// (falling back to the default title when empty). This fires at most once
// per session: any later append sees a non-empty history.
func (s *Store) AppendMessage(id string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}

	if len(s.sessions[idx].Messages) == 0 && !s.renamed[id] {
		title := strings.TrimSpace(msg.Text)
		if r := []rune(title); len(r) > TitleMaxLength {
			title = string(r[:TitleMaxLength])
		}
		if title == "" {
			title = DefaultTitle
		}
		s.sessions[idx].Title = title
	}

	s.sessions[idx].Messages = append(s.sessions[idx].Messages, msg)
	s.persistLocked()
}

// UpdateMessage patches a message by id. Patching a message or session that
// no longer exists is a silent no-op; in-flight stream updates may race a
// delete and must never fail.
func (s *Store) UpdateMessage(id, messageID string, patch MessagePatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	msgs := s.sessions[idx].Messages
	for i := range msgs {
		if msgs[i].ID != messageID {
			continue
		}
		if patch.Text != nil {
			msgs[i].Text = *patch.Text
		}
		switch {
		case patch.ClearSources:
			msgs[i].Sources = nil
		case patch.Sources != nil:
			msgs[i].Sources = append([]GroundingSource(nil), patch.Sources...)
		}
		s.persistLocked()
		return
	}
}

// Session returns a deep copy of the session with the given id.
func (s *Store) Session(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return Session{}, false
	}
	return copySession(s.sessions[idx]), true
}

// Snapshot returns a deep copy of the full collection and the active id.
func (s *Store) Snapshot() ([]Session, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = copySession(sess)
	}
	return out, s.activeID
}

// ActiveID returns the id of the active session, or empty when none.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// indexLocked returns the position of id, or -1. Caller holds s.mu.
func (s *Store) indexLocked(id string) int {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked mirrors the collection to the blob store. An empty
// collection removes the entry instead of writing an empty array.
// Persistence failures are logged, never surfaced. Caller holds s.mu.
func (s *Store) persistLocked() {
	if len(s.sessions) == 0 {
		if err := s.blob.Delete(SessionsKey); err != nil {
			s.logger.Warn("removing persisted sessions", "error", err)
		}
		return
	}

	data, err := json.Marshal(s.sessions)
	if err != nil {
		s.logger.Warn("serializing sessions", "error", err)
		return
	}
	if err := s.blob.Set(SessionsKey, data); err != nil {
		s.logger.Warn("persisting sessions", "error", err)
	}
}

func copySession(in Session) Session {
	out := in
	out.Messages = make([]Message, len(in.Messages))
	for i, m := range in.Messages {
		out.Messages[i] = m
		if m.Sources != nil {
			out.Messages[i].Sources = append([]GroundingSource(nil), m.Sources...)
		}
	}
	out.LocalSources = append([]LocalSource(nil), in.LocalSources...)
	return out
}
