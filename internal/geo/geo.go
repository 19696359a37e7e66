// Package geo resolves the user's approximate coordinates once at startup,
// on a best-effort basis, to enrich maps-grounded model requests.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/groundchat/groundchat/internal/chat"
	"github.com/groundchat/groundchat/internal/log"
)

// lookupTimeout bounds the single startup lookup. Failure silently
// disables location-aware maps grounding; it never blocks startup.
const lookupTimeout = 5 * time.Second

// Locator holds the last-known coordinates. The zero value reports no
// location. Locator is safe for concurrent use.
type Locator struct {
	mu     sync.RWMutex
	latLng *chat.LatLng

	endpoint string
	client   *http.Client
	logger   log.Logger
}

// NewLocator creates a Locator that queries the given IP-geolocation
// endpoint (ip-api.com JSON shape: {"lat": .., "lon": ..}).
func NewLocator(endpoint string, logger log.Logger) *Locator {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Locator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: lookupTimeout},
		logger:   logger,
	}
}

// Location implements chat.LocationProvider. Returns nil until a lookup
// has succeeded.
func (l *Locator) Location() *chat.LatLng {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.latLng == nil {
		return nil
	}
	ll := *l.latLng
	return &ll
}

// Resolve performs the single startup lookup in a goroutine.
// Fire-and-forget: errors are logged at debug and otherwise swallowed.
func (l *Locator) Resolve(ctx context.Context) {
	go func() {
		if err := l.lookup(ctx); err != nil {
			l.logger.Debug("geolocation unavailable", "error", err)
		}
	}()
}

func (l *Locator) lookup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("querying %s: %w", l.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("querying %s: status %d", l.endpoint, resp.StatusCode)
	}

	var body struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if body.Lat == 0 && body.Lon == 0 {
		return fmt.Errorf("no coordinates in response")
	}

	l.mu.Lock()
	l.latLng = &chat.LatLng{Latitude: body.Lat, Longitude: body.Lon}
	l.mu.Unlock()

	l.logger.Debug("geolocation resolved")
	return nil
}
