// CLAUDE:SUMMARY Composed service configuration: per-subsystem tunables with sensible Swiss-municipal defaults.
package amt

import (
	"time"

	"github.com/hazyhaar/amtinfo/amt/internal/cache"
	"github.com/hazyhaar/amtinfo/amt/internal/discover"
	"github.com/hazyhaar/amtinfo/amt/internal/extract"
	"github.com/hazyhaar/amtinfo/amt/internal/fetch"
	"github.com/hazyhaar/amtinfo/amt/internal/resolve"
)

// Config composes the tunables of every subsystem. The zero value is fully
// usable; each subsystem applies its own defaults.
type Config struct {
	// Fetch configures the HTTP client used for sitemaps and pages.
	Fetch fetch.Config
	// Discover configures candidate-page discovery.
	Discover discover.Config
	// Extract configures the model-backed extraction adapter.
	Extract extract.Config
	// Cache configures the per-category freshness windows.
	Cache cache.Config
	// Resolve configures the location resolver.
	Resolve resolve.Config
	// PageTimeout bounds the fetch of the chosen content page. Default: 5s.
	PageTimeout time.Duration
}

func (c *Config) defaults() {
	if c.PageTimeout <= 0 {
		c.PageTimeout = 5 * time.Second
	}
}
