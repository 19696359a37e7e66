package chat

import "strings"

// Delta is the progressive state of an in-flight model message after a
// chunk has been folded in: the full text so far and the deduplicated
// source set (nil while no sources have arrived).
type Delta struct {
	Text    string
	Sources []GroundingSource
}

// accumulator folds a chunk stream into a monotonically growing text buffer
// and a source set deduplicated by URI. Re-delivery of a URI updates its
// title in place but keeps first-occurrence order, so merging is idempotent.
type accumulator struct {
	text  strings.Builder
	order []string
	byURI map[string]GroundingSource
}

func newAccumulator() *accumulator {
	return &accumulator{byURI: make(map[string]GroundingSource)}
}

func (a *accumulator) fold(text string, sources []GroundingSource) {
	a.text.WriteString(text)
	for _, src := range sources {
		if _, seen := a.byURI[src.URI]; !seen {
			a.order = append(a.order, src.URI)
		}
		a.byURI[src.URI] = src
	}
}

func (a *accumulator) delta() Delta {
	d := Delta{Text: a.text.String()}
	if len(a.order) > 0 {
		d.Sources = make([]GroundingSource, len(a.order))
		for i, uri := range a.order {
			d.Sources[i] = a.byURI[uri]
		}
	}
	return d
}
