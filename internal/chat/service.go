package chat

import (
	"context"
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/groundchat/groundchat/internal/log"
)

// Chunk is one incremental unit of a streamed model response.
type Chunk struct {
	Text    string
	Sources []GroundingSource
}

// Streamer issues an assembled request and yields response chunks in order.
// The sequence ends at upstream completion, or yields a non-nil error and
// stops on failure.
type Streamer interface {
	Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error]
}

// LocationProvider reports the last-known user coordinates, or nil when
// none are available.
type LocationProvider interface {
	Location() *LatLng
}

// errorPrefix is prepended to the diagnostic text that replaces a failed
// model message.
const errorPrefix = "Sorry, I encountered an error: "

// Sentinel results for rejected sends. These reject the action locally and
// silently: nothing is appended and no user-visible error is raised.
type sendReject string

func (e sendReject) Error() string { return string(e) }

const (
	// ErrBusy rejects a send while another send is in flight anywhere in
	// the application.
	ErrBusy = sendReject("a send is already in flight")

	// ErrNoSession rejects a send into an unknown session.
	ErrNoSession = sendReject("session not found")

	// ErrEmptyPrompt rejects a send with no text and no image.
	ErrEmptyPrompt = sendReject("empty prompt")
)

// SendResult identifies the messages created by a send.
type SendResult struct {
	UserMessageID  string
	ModelMessageID string
}

// Service is the top-level conversation controller. It owns the
// process-wide sending flag and the user-visible error string, and drives
// one response stream at a time into the session store.
type Service struct {
	store  *Store
	model  Streamer
	loc    LocationProvider
	logger log.Logger

	sending atomic.Bool

	mu      sync.Mutex
	lastErr string
}

// NewService creates the controller. loc may be nil when geolocation is
// disabled.
func NewService(store *Store, model Streamer, loc LocationProvider, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{store: store, model: model, loc: loc, logger: logger}
}

// Sending reports whether a send is in flight.
func (s *Service) Sending() bool { return s.sending.Load() }

// LastError returns the user-visible error from the most recent failed
// send. It is cleared at the start of the next send attempt.
func (s *Service) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Service) setLastError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = msg
}

// Send runs one full user turn: append the user message and a model
// placeholder, assemble the request from the session state as it was before
// this turn, then consume the response stream, folding each chunk into the
// placeholder and invoking onDelta after every chunk.
//
// Exactly one send may be in flight across the whole application; a
// concurrent call returns ErrBusy without touching any session.
//
// On stream failure the placeholder text is replaced with a fixed
// diagnostic, accumulated sources are discarded, and the error is retained
// for LastError until the next attempt. The sending flag is released on
// every exit path.
func (s *Service) Send(ctx context.Context, sessionID, text string, image *Image, onDelta func(Delta)) (SendResult, error) {
	if !s.sending.CompareAndSwap(false, true) {
		return SendResult{}, ErrBusy
	}
	defer s.sending.Store(false)

	s.setLastError("")

	if strings.TrimSpace(text) == "" && image == nil {
		return SendResult{}, ErrEmptyPrompt
	}

	// History is assembled from the session as it stood before this turn;
	// the new turn's parts are built separately by BuildRequest.
	snapshot, ok := s.store.Session(sessionID)
	if !ok {
		return SendResult{}, ErrNoSession
	}

	userMsg := Message{ID: uuid.New().String(), Role: RoleUser, Text: text}
	if image != nil {
		userMsg.Image = image.DataURI()
	}
	s.store.AppendMessage(sessionID, userMsg)

	placeholder := Message{ID: uuid.New().String(), Role: RoleModel}
	s.store.AppendMessage(sessionID, placeholder)

	result := SendResult{UserMessageID: userMsg.ID, ModelMessageID: placeholder.ID}

	var loc *LatLng
	if s.loc != nil {
		loc = s.loc.Location()
	}
	req := BuildRequest(snapshot, text, image, loc)

	acc := newAccumulator()
	for chunk, err := range s.model.Stream(ctx, req) {
		if err != nil {
			s.failSend(sessionID, placeholder.ID, err)
			return result, err
		}

		acc.fold(chunk.Text, chunk.Sources)
		d := acc.delta()
		s.store.UpdateMessage(sessionID, placeholder.ID, MessagePatch{
			Text:    &d.Text,
			Sources: d.Sources,
		})
		if onDelta != nil {
			onDelta(d)
		}
	}

	s.logger.Debug("send completed",
		"session", sessionID,
		"chars", acc.text.Len(),
		"sources", len(acc.order),
	)
	return result, nil
}

// failSend replaces the placeholder with the diagnostic text, discards any
// partial sources, and records the user-visible error string.
func (s *Service) failSend(sessionID, messageID string, err error) {
	s.logger.Warn("model stream failed", "session", sessionID, "error", err)

	diagnostic := errorPrefix + err.Error()
	s.store.UpdateMessage(sessionID, messageID, MessagePatch{
		Text:         &diagnostic,
		ClearSources: true,
	})
	s.setLastError("Error: " + err.Error())
}
