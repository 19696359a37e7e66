// Package chat implements the conversation controller: the session store,
// the prompt assembler, and the streaming response consumer.
//
// Sessions are plain values serialized as a single JSON blob; field names are
// part of the persisted format and must not change.
package chat

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Message roles. Fixed at creation; only model messages mutate after
// creation, and only while their response stream is in flight.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Grounding source types.
const (
	SourceWeb  = "web"
	SourceMaps = "maps"
)

// Default titles for grounding sources that arrive without one.
const (
	UntitledWebSource  = "Untitled Source"
	UntitledMapsSource = "Map Location"
)

// GroundingSource is a citation attached to a model message.
// Unique per message, keyed by URI.
type GroundingSource struct {
	Type  string `json:"type"` // "web" | "maps"
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// LocalSource is a user-supplied plain-text document injected into the
// prompt context. Never mutated once added.
type LocalSource struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Message is a single conversation turn.
// Image is a data URI, present only on user messages.
type Message struct {
	ID      string            `json:"id"`
	Role    string            `json:"role"`
	Text    string            `json:"text"`
	Image   string            `json:"image,omitempty"`
	Sources []GroundingSource `json:"sources,omitempty"`
}

// Config holds per-session generation settings. Replaced wholesale on edit.
type Config struct {
	SystemInstruction string  `json:"systemInstruction"`
	Temperature       float64 `json:"temperature"`
	TopK              int     `json:"topK"`
	TopP              float64 `json:"topP"`
	UseGrounding      bool    `json:"useGrounding"`
	UseMapsGrounding  bool    `json:"useMapsGrounding"`
	ThinkingBudget    int     `json:"thinkingBudget"`
}

// Session is one independent conversation with its own history,
// configuration, and local sources.
type Session struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Messages     []Message     `json:"messages"`
	Config       Config        `json:"config"`
	LocalSources []LocalSource `json:"localSources"`
	IsRenaming   bool          `json:"isRenaming,omitempty"` // Transient UI flag, not load-bearing
}

// DefaultSystemInstruction is the system prompt applied to new sessions.
const DefaultSystemInstruction = "You are a helpful and brilliant AI assistant. " +
	"When sources are provided, ground your answer in them. If you can't answer " +
	"from the sources, say so. Respond in Markdown format."

// DefaultConfig returns the generation settings for a new session.
func DefaultConfig() Config {
	return Config{
		SystemInstruction: DefaultSystemInstruction,
		Temperature:       0.7,
		TopK:              40,
		TopP:              0.95,
		UseGrounding:      false,
		UseMapsGrounding:  false,
		ThinkingBudget:    0,
	}
}

// DefaultTitle is the title of a session before its first message.
const DefaultTitle = "New Chat"

// NewSession creates an empty session with default configuration.
func NewSession() Session {
	return Session{
		ID:           uuid.New().String(),
		Title:        DefaultTitle,
		Messages:     []Message{},
		Config:       DefaultConfig(),
		LocalSources: []LocalSource{},
	}
}

// NewLocalSourceID returns a time-based identifier for a local source.
// Uniqueness is only required within one session's source list.
func NewLocalSourceID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// MessagePatch describes a partial update to a message. Nil fields are
// left unchanged; ClearSources discards the source set regardless of
// Sources.
type MessagePatch struct {
	Text         *string
	Sources      []GroundingSource
	ClearSources bool
}

// LatLng is a geographic coordinate pair for maps grounding.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
