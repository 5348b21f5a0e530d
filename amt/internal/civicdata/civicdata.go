// CLAUDE:SUMMARY HTTP client for an open civic municipality directory; last-resort resolver tier.
// Package civicdata queries an external open-data municipality directory.
//
// It is the resolver's last tier: when the internal dataset has no entry,
// a name lookup against the configured directory may still identify the
// municipality. Results are normalized into the internal authority shape by
// the caller.
package civicdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Record is one directory entry.
type Record struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Canton  string `json:"canton"`
	Website string `json:"website,omitempty"`
}

// Config configures the client.
type Config struct {
	// BaseURL of the directory search endpoint. Empty disables the client.
	BaseURL string
	// Timeout per lookup. Default: 5s.
	Timeout time.Duration
	// UserAgent sent with requests.
	UserAgent string
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "amtinfo/1.0"
	}
}

// Client performs directory lookups.
type Client struct {
	config Config
	client *http.Client
}

// New creates a Client. Returns nil if no BaseURL is configured; callers
// treat a nil client as "tier disabled".
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		return nil
	}
	cfg.defaults()
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type searchResponse struct {
	Results []Record `json:"results"`
}

// LookupByName queries the directory for a municipality by name, optionally
// restricted to a canton. Returns nil when the directory has no match.
func (c *Client) LookupByName(ctx context.Context, name, canton string) (*Record, error) {
	q := url.Values{"name": {name}}
	if canton != "" {
		q.Set("canton", canton)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("civicdata: new request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("civicdata: lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("civicdata: http %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("civicdata: decode: %w", err)
	}
	if len(sr.Results) == 0 {
		return nil, nil
	}
	r := sr.Results[0]
	if r.Name == "" {
		return nil, nil
	}
	return &r, nil
}
