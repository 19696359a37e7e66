package chat

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// sourcePreambleHeader wraps user-supplied sources injected ahead of the
// prompt. The wording instructs the model to answer strictly from the
// sources and to say so when it cannot.
const sourcePreambleHeader = "Please use the following sources to answer the user's question. " +
	`Respond with "I don't have enough information in the provided sources" ` +
	"if you cannot answer from the context.\n\nSOURCES:\n"

const sourceDivider = "\n\n---\n\n"

// Image is a decoded inline image attachment.
type Image struct {
	MIMEType string
	Data     []byte
}

// ErrBadDataURI indicates an image data URI that cannot be decoded.
var ErrBadDataURI = errors.New("malformed data URI")

// ParseDataURI decodes a "data:<mime>;base64,<payload>" URI.
func ParseDataURI(uri string) (Image, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return Image{}, ErrBadDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, ErrBadDataURI
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok || mime == "" {
		return Image{}, ErrBadDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrBadDataURI, err)
	}
	return Image{MIMEType: mime, Data: data}, nil
}

// DataURI encodes the image as a base64 data URI for storage and display.
func (img Image) DataURI() string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Request is a fully assembled model invocation.
type Request struct {
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// BuildRequest assembles the streaming request for a new user turn: prior
// history in role/parts form, the local-source preamble, the new turn's
// parts, tools, and generation parameters.
//
// BuildRequest is pure: it reads the session and produces a request value
// without mutating anything. loc may be nil when no geolocation is known.
func BuildRequest(sess Session, text string, image *Image, loc *LatLng) Request {
	contents := make([]*genai.Content, 0, len(sess.Messages)+1)

	for _, msg := range sess.Messages {
		var parts []*genai.Part
		if msg.Text != "" {
			parts = append(parts, genai.NewPartFromText(msg.Text))
		}
		if msg.Role == RoleUser && msg.Image != "" {
			if img, err := ParseDataURI(msg.Image); err == nil {
				parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
			}
		}
		// A still-empty model placeholder yields zero parts; drop it.
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: msg.Role, Parts: parts})
	}

	var userParts []*genai.Part
	if image != nil {
		userParts = append(userParts, genai.NewPartFromBytes(image.Data, image.MIMEType))
	}
	userParts = append(userParts, genai.NewPartFromText(sourcePreamble(sess.LocalSources)+text))
	contents = append(contents, &genai.Content{Role: RoleUser, Parts: userParts})

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(sess.Config.Temperature)),
		TopK:        genai.Ptr(float32(sess.Config.TopK)),
		TopP:        genai.Ptr(float32(sess.Config.TopP)),
	}
	if sess.Config.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(sess.Config.SystemInstruction)},
		}
	}
	if sess.Config.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(sess.Config.ThinkingBudget)),
		}
	}
	if sess.Config.UseGrounding {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if sess.Config.UseMapsGrounding {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleMaps: &genai.GoogleMaps{}})
		if loc != nil {
			cfg.ToolConfig = &genai.ToolConfig{
				RetrievalConfig: &genai.RetrievalConfig{
					LatLng: &genai.LatLng{Latitude: genai.Ptr(loc.Latitude), Longitude: genai.Ptr(loc.Longitude)},
				},
			}
		}
	}

	return Request{Contents: contents, Config: cfg}
}

// sourcePreamble synthesizes the grounding context from the session's local
// sources, concatenated in list order. Empty list yields the empty string.
func sourcePreamble(sources []LocalSource) string {
	if len(sources) == 0 {
		return ""
	}
	blocks := make([]string, len(sources))
	for i, src := range sources {
		blocks[i] = "Title: " + src.Title + "\nContent:\n" + src.Content
	}
	return sourcePreambleHeader + strings.Join(blocks, sourceDivider) + sourceDivider
}
