// CLAUDE:SUMMARY Bounded HTTP fetcher for discovery: per-call timeout, size cap, SSRF validation on request and redirects.
// Package fetch implements bounded HTTP content fetching for the discovery
// crawler.
//
// Every call carries its own timeout and body-size cap; URLs and redirect
// hops are validated before any connection is made.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hazyhaar/amtinfo/urlguard"
)

// Result contains the outcome of a fetch.
type Result struct {
	Body        []byte
	StatusCode  int
	ContentType string
	FinalURL    string // after redirects
}

// Config configures the fetcher.
type Config struct {
	Timeout  time.Duration // default per-call timeout. Default: 5s.
	MaxBytes int64         // max response body size. Default: urlguard.MaxBody.
	// UserAgent sent with requests.
	UserAgent string
	// URLValidator validates URLs before fetch and on each redirect hop.
	// Default: urlguard.ValidateURL.
	URLValidator func(string) error
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = urlguard.MaxBody
	}
	if c.UserAgent == "" {
		c.UserAgent = "amtinfo/1.0 (+https://github.com/hazyhaar/amtinfo)"
	}
	if c.URLValidator == nil {
		c.URLValidator = urlguard.ValidateURL
	}
}

// Fetcher performs bounded HTTP GET requests.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher with redirect validation.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Get retrieves a URL with the given timeout (0 uses the configured default).
// Non-2xx/3xx responses return the status code alongside an error.
func (f *Fetcher) Get(ctx context.Context, rawURL string, timeout time.Duration) (*Result, error) {
	if err := f.config.URLValidator(rawURL); err != nil {
		return nil, fmt.Errorf("URL blocked: %w", err)
	}
	if timeout <= 0 {
		timeout = f.config.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return &Result{StatusCode: resp.StatusCode}, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := urlguard.LimitedReadAll(resp.Body, f.config.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Result{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    finalURL,
	}, nil
}
