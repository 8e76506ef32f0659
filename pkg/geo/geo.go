// Package geo provides the location helpers used alongside the glove link:
// a "where am I" lookup against an HTTP geolocation endpoint and map-URL
// construction for handing off to an external map application.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Client resolves the host's current coordinates through a geolocation
// service.
type Client struct {
	// UserAgent is sent with every request.
	UserAgent string

	baseURL string
	client  *http.Client
}

// NewClient returns a Client for the lookup service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		UserAgent: "glovelink",
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Locate returns the current coordinates as reported by the lookup service.
func (c *Client) Locate(ctx context.Context) (Coordinates, error) {
	request, err := http.NewRequestWithContext(ctx, "GET", c.baseURL, nil)
	if err != nil {
		return Coordinates{}, err
	}
	request.Header.Set("User-Agent", c.UserAgent)
	request.Header.Set("Accept", "application/json")

	result, err := c.client.Do(request)
	if err != nil {
		return Coordinates{}, err
	}
	defer result.Body.Close()

	if result.StatusCode != http.StatusOK {
		return Coordinates{}, fmt.Errorf("geo: lookup failed: %s", http.StatusText(result.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(result.Body, 1<<16))
	if err != nil {
		return Coordinates{}, err
	}
	var coords Coordinates
	if err := json.Unmarshal(data, &coords); err != nil {
		return Coordinates{}, fmt.Errorf("geo: invalid response: %s", err)
	}
	return coords, nil
}

// MapURL builds an external map URL centered on coords. With a non-empty
// query the URL opens a map search near the position instead.
func MapURL(coords Coordinates, query string) string {
	if query == "" {
		return fmt.Sprintf("https://www.openstreetmap.org/?mlat=%.6f&mlon=%.6f#map=16/%.6f/%.6f",
			coords.Latitude, coords.Longitude, coords.Latitude, coords.Longitude)
	}
	v := url.Values{}
	v.Set("query", query)
	return fmt.Sprintf("https://www.openstreetmap.org/search?%s#map=16/%.6f/%.6f",
		v.Encode(), coords.Latitude, coords.Longitude)
}
