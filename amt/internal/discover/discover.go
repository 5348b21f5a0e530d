// CLAUDE:SUMMARY Candidate-page discovery: sitemap-first with homepage-crawl fallback, bounded concurrent scoring.
// Package discover finds and scores the pages on a municipal website most
// likely to carry residence-registration information.
//
// Strategy is sitemap-first: well-known sitemap paths are tried, their
// entries filtered by a multilingual keyword/path allow-list, and a bounded
// number of candidates fetched and scored. When no sitemap exists or it
// yields nothing, the homepage is crawled for same-domain anchors instead.
// Every per-candidate failure is swallowed — an unreachable site produces an
// empty list, never an error.
package discover

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/amtinfo/amt/internal/fetch"
)

// Method records how a candidate was found.
type Method string

const (
	MethodSitemap  Method = "sitemap"
	MethodHomepage Method = "homepage-crawl"
)

// Candidate is a discovered page with its heuristic relevance score.
type Candidate struct {
	URL    string  `json:"url"`
	Score  float64 `json:"score"` // in [0,1]
	Method Method  `json:"method"`
}

// Config configures discovery.
type Config struct {
	// SitemapTimeout bounds each sitemap fetch. Default: 8s.
	SitemapTimeout time.Duration
	// PageTimeout bounds each candidate-page fetch. Default: 5s.
	PageTimeout time.Duration
	// SitemapCap is the max filtered sitemap candidates fetched. Default: 20.
	SitemapCap int
	// HomepageCap is the max filtered homepage anchors fetched. Default: 15.
	HomepageCap int
	// Concurrency bounds parallel candidate fetches. Default: 4.
	Concurrency int
	// RatePerSec paces fetches against one municipal site. Default: 4.
	RatePerSec float64
	// KeepThreshold drops candidates scoring at or below it. Default: 0.3.
	KeepThreshold float64
	// OverrideThreshold marks a candidate confident enough to override the
	// extraction model's registration URL. Default: 0.7.
	OverrideThreshold float64
	// Weights are the scoring constants. Default: DefaultWeights().
	Weights Weights
}

func (c *Config) defaults() {
	if c.SitemapTimeout <= 0 {
		c.SitemapTimeout = 8 * time.Second
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = 5 * time.Second
	}
	if c.SitemapCap <= 0 {
		c.SitemapCap = 20
	}
	if c.HomepageCap <= 0 {
		c.HomepageCap = 15
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 4
	}
	if c.KeepThreshold <= 0 {
		c.KeepThreshold = 0.3
	}
	if c.OverrideThreshold <= 0 {
		c.OverrideThreshold = 0.7
	}
	if c.Weights == (Weights{}) {
		c.Weights = DefaultWeights()
	}
}

// Discoverer crawls municipal websites for registration pages.
type Discoverer struct {
	fetcher *fetch.Fetcher
	config  Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Discoverer.
func New(fetcher *fetch.Fetcher, cfg Config, logger *slog.Logger) *Discoverer {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		fetcher: fetcher,
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		logger:  logger,
	}
}

// Discover finds candidate registration pages on site (a domain or URL) for
// the named authority, sorted by descending score. A site that is entirely
// unreachable yields an empty slice, not an error.
func (d *Discoverer) Discover(ctx context.Context, site, authorityName string) []Candidate {
	base, err := parseSite(site)
	if err != nil {
		d.logger.Warn("discover: bad site", "site", site, "error", err)
		return nil
	}
	log := d.logger.With("site", base.Host, "authority", authorityName)

	candidates := d.fromSitemap(ctx, base, authorityName, log)
	if len(candidates) == 0 {
		candidates = d.fromHomepage(ctx, base, authorityName, log)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// OverrideThreshold exposes the configured override cutoff for the caller
// that arbitrates between discovery and model output.
func (d *Discoverer) OverrideThreshold() float64 {
	return d.config.OverrideThreshold
}

func (d *Discoverer) fromSitemap(ctx context.Context, base *url.URL, authorityName string, log *slog.Logger) []Candidate {
	var locs []string
	for _, p := range sitemapPaths {
		res, err := d.fetcher.Get(ctx, base.Scheme+"://"+base.Host+p, d.config.SitemapTimeout)
		if err != nil {
			log.Debug("discover: sitemap path failed", "path", p, "error", err)
			continue
		}
		if locs = parseSitemapLocs(res.Body); len(locs) > 0 {
			log.Debug("discover: sitemap found", "path", p, "entries", len(locs))
			break
		}
	}
	if len(locs) == 0 {
		return nil
	}

	var filtered []string
	for _, u := range locs {
		if matchesAllowList(u) {
			filtered = append(filtered, u)
		}
	}
	if len(filtered) > d.config.SitemapCap {
		filtered = filtered[:d.config.SitemapCap]
	}
	return d.fetchAndScore(ctx, filtered, authorityName, MethodSitemap, log)
}

func (d *Discoverer) fromHomepage(ctx context.Context, base *url.URL, authorityName string, log *slog.Logger) []Candidate {
	res, err := d.fetcher.Get(ctx, base.String(), d.config.PageTimeout)
	if err != nil {
		log.Debug("discover: homepage unreachable", "error", err)
		return nil
	}

	var filtered []string
	for _, u := range extractAnchors(res.Body, base) {
		if matchesAllowList(u) {
			filtered = append(filtered, u)
		}
	}
	if len(filtered) > d.config.HomepageCap {
		filtered = filtered[:d.config.HomepageCap]
	}
	return d.fetchAndScore(ctx, filtered, authorityName, MethodHomepage, log)
}

// fetchAndScore retrieves candidates with bounded concurrency, scores each
// page, and keeps those above the keep threshold. Individual fetch failures
// drop the candidate and nothing else.
func (d *Discoverer) fetchAndScore(ctx context.Context, urls []string, authorityName string, method Method, log *slog.Logger) []Candidate {
	if len(urls) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		kept []Candidate
		wg   sync.WaitGroup
		sem  = make(chan struct{}, d.config.Concurrency)
	)

	for _, u := range urls {
		wg.Add(1)
		go func(pageURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := d.limiter.Wait(ctx); err != nil {
				return
			}
			res, err := d.fetcher.Get(ctx, pageURL, d.config.PageTimeout)
			if err != nil {
				log.Debug("discover: candidate dropped", "url", pageURL, "error", err)
				return
			}
			score := scorePage(pageURL, res.Body, authorityName, d.config.Weights)
			if score <= d.config.KeepThreshold {
				return
			}
			mu.Lock()
			kept = append(kept, Candidate{URL: pageURL, Score: score, Method: method})
			mu.Unlock()
		}(u)
	}
	wg.Wait()
	return kept
}

func parseSite(site string) (*url.URL, error) {
	s := strings.TrimSpace(site)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}
