// Package llm wraps the Gemini API client behind the chat.Streamer
// interface so the conversation controller can be driven by scripted fakes
// in tests.
package llm

import (
	"context"
	"fmt"
	"iter"

	"google.golang.org/genai"

	"github.com/groundchat/groundchat/internal/chat"
)

// Client is the production chat.Streamer over google.golang.org/genai.
type Client struct {
	client *genai.Client
	model  string
}

// New creates a Gemini client for the given API key and model.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Client{client: c, model: model}, nil
}

// Stream implements chat.Streamer.
func (c *Client) Stream(ctx context.Context, req chat.Request) iter.Seq2[chat.Chunk, error] {
	return func(yield func(chat.Chunk, error) bool) {
		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, req.Contents, req.Config) {
			if err != nil {
				yield(chat.Chunk{}, err)
				return
			}
			if !yield(chat.Chunk{Text: resp.Text(), Sources: extractSources(resp)}, nil) {
				return
			}
		}
	}
}

// extractSources maps a chunk's grounding metadata to citation sources.
// Entries that are neither web nor maps are discarded; missing titles get
// the type's placeholder.
func extractSources(resp *genai.GenerateContentResponse) []chat.GroundingSource {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}

	var out []chat.GroundingSource
	for _, gc := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		switch {
		case gc.Web != nil:
			out = append(out, chat.GroundingSource{
				Type:  chat.SourceWeb,
				URI:   gc.Web.URI,
				Title: orDefault(gc.Web.Title, chat.UntitledWebSource),
			})
		case gc.Maps != nil:
			out = append(out, chat.GroundingSource{
				Type:  chat.SourceMaps,
				URI:   gc.Maps.URI,
				Title: orDefault(gc.Maps.Title, chat.UntitledMapsSource),
			})
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
