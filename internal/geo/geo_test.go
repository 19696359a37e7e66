package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/groundchat/groundchat/internal/log"
)

func TestLocator_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","lat":25.033,"lon":121.5654}`))
	}))
	defer srv.Close()

	l := NewLocator(srv.URL, log.NewNop())
	if got := l.Location(); got != nil {
		t.Fatalf("Location() before lookup = %+v, want nil", got)
	}

	if err := l.lookup(context.Background()); err != nil {
		t.Fatalf("lookup() error: %v", err)
	}

	got := l.Location()
	if got == nil {
		t.Fatal("Location() = nil after successful lookup")
	}
	if got.Latitude != 25.033 || got.Longitude != 121.5654 {
		t.Errorf("Location() = %+v", got)
	}

	// Callers get a copy, not the shared value.
	got.Latitude = 0
	if l.Location().Latitude != 25.033 {
		t.Error("Location() exposed internal state")
	}
}

func TestLocator_LookupFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "invalid body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
		},
		{
			name: "zero coordinates",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"lat":0,"lon":0}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			l := NewLocator(srv.URL, log.NewNop())
			if err := l.lookup(context.Background()); err == nil {
				t.Error("lookup() expected error, got nil")
			}
			if l.Location() != nil {
				t.Error("failed lookup should leave location unset")
			}
		})
	}
}

func TestLocator_UnreachableEndpoint(t *testing.T) {
	l := NewLocator("http://127.0.0.1:1", log.NewNop())
	if err := l.lookup(context.Background()); err == nil {
		t.Error("lookup() expected connection error, got nil")
	}
}
