package chat

import (
	"reflect"
	"testing"
)

func TestAccumulator_TextGrowsMonotonically(t *testing.T) {
	acc := newAccumulator()
	acc.fold("Hello", nil)
	acc.fold(", world", nil)

	if got := acc.delta().Text; got != "Hello, world" {
		t.Errorf("text = %q, want %q", got, "Hello, world")
	}
}

func TestAccumulator_DedupByURI(t *testing.T) {
	a := GroundingSource{Type: SourceWeb, URI: "https://a", Title: "A"}
	b := GroundingSource{Type: SourceWeb, URI: "https://b", Title: "B"}

	acc := newAccumulator()
	acc.fold("x", []GroundingSource{a, b})
	acc.fold("y", []GroundingSource{b, a}) // re-delivery in a different order

	got := acc.delta().Sources
	want := []GroundingSource{a, b}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sources = %+v, want first-occurrence order %+v", got, want)
	}
}

func TestAccumulator_RedeliveryUpdatesTitle(t *testing.T) {
	acc := newAccumulator()
	acc.fold("", []GroundingSource{{Type: SourceWeb, URI: "https://a", Title: "Untitled Source"}})
	acc.fold("", []GroundingSource{{Type: SourceWeb, URI: "https://a", Title: "Real Title"}})

	got := acc.delta().Sources
	if len(got) != 1 {
		t.Fatalf("got %d sources, want 1", len(got))
	}
	if got[0].Title != "Real Title" {
		t.Errorf("title = %q, want later delivery to win", got[0].Title)
	}
}

func TestAccumulator_NoSourcesYieldsNil(t *testing.T) {
	acc := newAccumulator()
	acc.fold("text only", nil)

	if got := acc.delta().Sources; got != nil {
		t.Errorf("sources = %+v, want nil", got)
	}
}
