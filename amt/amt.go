// CLAUDE:SUMMARY Service orchestrator: resolve → cache check → discover → fetch → extract → cache write.
// Package amt answers "where and how do I register my residence" for Swiss
// municipalities.
//
// The service resolves a free-text location query to a canonical authority,
// then produces an information record (counter hours, contact details,
// registration documents and fees) from the municipality's own website. The
// pipeline behind a record is: cached entry if fresh, otherwise candidate
// page discovery on the official site, extraction through a generative
// model, and a deterministic default record when everything else fails. A
// caller always receives either a resolution error or a complete record —
// never a partial one.
package amt

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hazyhaar/amtinfo/amt/internal/cache"
	"github.com/hazyhaar/amtinfo/amt/internal/civicdata"
	"github.com/hazyhaar/amtinfo/amt/internal/dataset"
	"github.com/hazyhaar/amtinfo/amt/internal/discover"
	"github.com/hazyhaar/amtinfo/amt/internal/extract"
	"github.com/hazyhaar/amtinfo/amt/internal/fetch"
	"github.com/hazyhaar/amtinfo/amt/internal/resolve"
)

// Re-exported types so callers never import internal packages.
type (
	// Resolved is a canonical authority produced by location resolution.
	Resolved = resolve.Resolved
	// Info is a complete authority-information record.
	Info = extract.Info
	// DayHours is one weekday's counter hours.
	DayHours = extract.DayHours
)

// ErrNotFound is matched by errors.Is when no authority matches a query.
var ErrNotFound = resolve.ErrNotFound

// InfoOptions tunes one information request.
type InfoOptions struct {
	// ForceRefresh bypasses the cache and rebuilds the record.
	ForceRefresh bool
}

// InfoResult is an information record with its provenance.
type InfoResult struct {
	Authority *Resolved `json:"authority"`
	Info      *Info     `json:"info"`
	// Cached reports whether the record was served from the cache.
	Cached bool `json:"cached"`
	// CachedAt is when the record was built (cache write time).
	CachedAt time.Time `json:"cached_at"`
	// FromModel is false when the record is the deterministic default.
	FromModel bool `json:"from_model"`
}

// cachedRecord is the operational-category payload. FromModel travels with
// the record so a cache hit reports honest provenance.
type cachedRecord struct {
	Info      *Info `json:"info"`
	FromModel bool  `json:"from_model"`
}

// processInfo is the slow-moving slice of a record, cached under its own
// longer-lived category so it survives operational-cache expiry and failed
// re-extractions.
type processInfo struct {
	RequiredDocuments []string `json:"required_documents"`
	Fees              string   `json:"fees"`
	SpecialNotices    []string `json:"special_notices,omitempty"`
}

// Service is the resolution and information facade. Safe for concurrent use.
type Service struct {
	data       *dataset.Store
	resolver   *resolve.Resolver
	discoverer *discover.Discoverer
	extractor  *extract.Adapter
	cache      *cache.Store
	fetcher    *fetch.Fetcher
	config     Config
	logger     *slog.Logger
}

// Option customizes Service construction.
type Option func(*options)

type options struct {
	directory resolve.Directory
	generator extract.Generator
	fetcher   *fetch.Fetcher
}

// WithDirectory enables the external civic-directory resolution tier.
func WithDirectory(dir resolve.Directory) Option {
	return func(o *options) { o.directory = dir }
}

// WithCivicDirectory enables the external directory tier against an open
// civic-dataset search endpoint. No-op when baseURL is empty.
func WithCivicDirectory(baseURL string) Option {
	return func(o *options) {
		if c := civicdata.New(civicdata.Config{BaseURL: baseURL}); c != nil {
			o.directory = c
		}
	}
}

// WithGenerator sets the extraction model client. Without one every record
// is the deterministic default.
func WithGenerator(gen extract.Generator) Option {
	return func(o *options) { o.generator = gen }
}

// WithChatModel wires an OpenAI-compatible chat-completions endpoint as the
// extraction model. No-op when baseURL is empty.
func WithChatModel(baseURL, model, apiKey string) Option {
	return func(o *options) {
		if c := extract.NewChatClient(extract.ChatConfig{
			BaseURL: baseURL,
			Model:   model,
			APIKey:  apiKey,
		}); c != nil {
			o.generator = c
		}
	}
}

// WithFetcher overrides the HTTP fetcher, mainly for tests that need to
// bypass URL safety checks against httptest loopback servers.
func WithFetcher(f *fetch.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// New builds the Service on two SQLite handles: dataDB for the canonical
// municipality dataset, cacheDB for extracted records. Both schemas are
// created on the spot.
func New(dataDB, cacheDB *sql.DB, cfg Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	data := dataset.New(dataDB)
	if err := data.Init(context.Background()); err != nil {
		return nil, fmt.Errorf("amt: dataset schema: %w", err)
	}
	cacheStore, err := cache.New(cacheDB, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("amt: %w", err)
	}

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = fetch.New(cfg.Fetch)
	}

	return &Service{
		data:       data,
		resolver:   resolve.New(data, o.directory, cfg.Resolve, logger),
		discoverer: discover.New(fetcher, cfg.Discover, logger),
		extractor:  extract.New(o.generator, cfg.Extract, logger),
		cache:      cacheStore,
		fetcher:    fetcher,
		config:     cfg,
		logger:     logger,
	}, nil
}

// SeedDataset loads the embedded starter municipalities. Idempotent.
func (s *Service) SeedDataset(ctx context.Context) (int, error) {
	return s.data.ImportSeed(ctx)
}

// ImportDataset upserts authorities from a YAML document (BFS export
// format). Returns the number of imported records.
func (s *Service) ImportDataset(ctx context.Context, r io.Reader) (int, error) {
	return s.data.ImportYAML(ctx, r)
}

// Resolve maps a free-text location query (name, sub-locality, or 4-digit
// postal code) to a canonical authority. cantonHint may be empty.
func (s *Service) Resolve(ctx context.Context, query, cantonHint string) (*Resolved, error) {
	return s.resolver.Resolve(ctx, query, cantonHint)
}

// Info returns the information record for an already-resolved authority.
func (s *Service) Info(ctx context.Context, res *Resolved, opts InfoOptions) (*InfoResult, error) {
	if res == nil {
		return nil, fmt.Errorf("amt: nil authority")
	}

	if !opts.ForceRefresh {
		if hit := s.fromCache(ctx, res); hit != nil {
			return hit, nil
		}
	}
	return s.refresh(ctx, res)
}

// Lookup is Resolve followed by Info, the shape both the HTTP API and the
// MCP tools expose.
func (s *Service) Lookup(ctx context.Context, query, cantonHint string, opts InfoOptions) (*InfoResult, error) {
	res, err := s.Resolve(ctx, query, cantonHint)
	if err != nil {
		return nil, err
	}
	return s.Info(ctx, res, opts)
}

// Refresh invalidates the cache for one municipality and rebuilds its
// record. Backs the admin refresh endpoint.
func (s *Service) Refresh(ctx context.Context, bfsNr int) (*InfoResult, error) {
	a, err := s.data.Get(ctx, bfsNr)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &resolve.NotFoundError{
			Query: fmt.Sprintf("bfs_nr %d", bfsNr),
			Hint:  "import the municipality into the dataset first",
		}
	}
	if err := s.cache.Invalidate(ctx, bfsNr); err != nil {
		return nil, err
	}
	return s.refresh(ctx, &Resolved{
		BFSNr:             a.BFSNr,
		Name:              a.Name,
		SubLocality:       a.Name,
		Canton:            a.Canton,
		Website:           a.Website,
		RegistrationPages: a.RegistrationPages,
	})
}

// CacheStats reports cached-entry counts per category.
func (s *Service) CacheStats(ctx context.Context) (map[cache.Category]int, error) {
	return s.cache.Stats(ctx)
}

// fromCache serves a record when the operational entry is fresh. The
// process entry, when present, overlays the slow-moving fields.
func (s *Service) fromCache(ctx context.Context, res *Resolved) *InfoResult {
	op, err := s.cache.Get(ctx, res.BFSNr, cache.CategoryOperational)
	if err != nil {
		s.logger.Warn("amt: cache read failed", "bfs_nr", res.BFSNr, "error", err)
		return nil
	}
	if op == nil {
		return nil
	}

	var rec cachedRecord
	if err := json.Unmarshal(op.Payload, &rec); err != nil || rec.Info == nil {
		s.logger.Warn("amt: corrupt cache entry", "bfs_nr", res.BFSNr, "error", err)
		return nil
	}
	s.overlayProcess(ctx, res.BFSNr, rec.Info)

	return &InfoResult{
		Authority: res,
		Info:      rec.Info,
		Cached:    true,
		CachedAt:  op.CachedAt,
		FromModel: rec.FromModel,
	}
}

// refresh rebuilds the record: discovery on the official site, extraction
// of the best page, cache write. Cache-write failures are logged, never
// surfaced — the caller still gets the record.
func (s *Service) refresh(ctx context.Context, res *Resolved) (*InfoResult, error) {
	bestURL, bestScore := s.bestCandidate(ctx, res)

	var content []byte
	pageURL := bestURL
	if pageURL == "" && res.Website != "" {
		pageURL = res.Website
	}
	if pageURL != "" {
		if page, err := s.fetcher.Get(ctx, pageURL, s.config.PageTimeout); err != nil {
			s.logger.Warn("amt: content page unreachable", "url", pageURL, "error", err)
		} else {
			content = page.Body
			s.logger.Debug("amt: content page",
				"bfs_nr", res.BFSNr, "url", pageURL, "score", bestScore)
		}
	}

	outcome := s.extractor.Extract(ctx, extract.Request{
		PageContent:   string(content),
		AuthorityName: res.Name,
		Website:       res.Website,
		BestURL:       bestURL,
		BestScore:     bestScore,
	})
	info := outcome.Info
	if !outcome.FromModel {
		s.logger.Info("amt: default record substituted",
			"bfs_nr", res.BFSNr, "name", res.Name, "reason", outcome.FailureReason)
		// A still-fresh process entry beats the generic defaults.
		s.overlayProcess(ctx, res.BFSNr, info)
	}

	builtAt := s.store(ctx, res.BFSNr, info, outcome.FromModel)

	return &InfoResult{
		Authority: res,
		Info:      info,
		Cached:    false,
		CachedAt:  builtAt,
		FromModel: outcome.FromModel,
	}, nil
}

// bestCandidate prefers a curated registration page from the dataset over
// discovery; curated pages carry full confidence.
func (s *Service) bestCandidate(ctx context.Context, res *Resolved) (string, float64) {
	if len(res.RegistrationPages) > 0 {
		return res.RegistrationPages[0], 1.0
	}
	if res.Website == "" {
		return "", 0
	}
	candidates := s.discoverer.Discover(ctx, res.Website, res.Name)
	if len(candidates) == 0 {
		return "", 0
	}
	return candidates[0].URL, candidates[0].Score
}

func (s *Service) overlayProcess(ctx context.Context, bfsNr int, info *Info) {
	proc, err := s.cache.Get(ctx, bfsNr, cache.CategoryProcess)
	if err != nil || proc == nil {
		return
	}
	var p processInfo
	if err := json.Unmarshal(proc.Payload, &p); err != nil {
		return
	}
	if len(p.RequiredDocuments) > 0 {
		info.RequiredDocuments = p.RequiredDocuments
	}
	if p.Fees != "" {
		info.Fees = p.Fees
	}
	if len(p.SpecialNotices) > 0 {
		info.SpecialNotices = p.SpecialNotices
	}
}

// store writes both cache categories and returns the record's build
// timestamp — the operational write time when the write landed, so fresh
// responses and later cache hits report the same CachedAt.
func (s *Service) store(ctx context.Context, bfsNr int, info *Info, fromModel bool) time.Time {
	builtAt := time.UnixMilli(time.Now().UnixMilli())
	if payload, err := json.Marshal(cachedRecord{Info: info, FromModel: fromModel}); err == nil {
		at, err := s.cache.Put(ctx, bfsNr, cache.CategoryOperational, payload)
		if err != nil {
			s.logger.Warn("amt: cache write failed", "bfs_nr", bfsNr, "category", "operational", "error", err)
		} else {
			builtAt = at
		}
	}
	if payload, err := json.Marshal(processInfo{
		RequiredDocuments: info.RequiredDocuments,
		Fees:              info.Fees,
		SpecialNotices:    info.SpecialNotices,
	}); err == nil {
		if _, err := s.cache.Put(ctx, bfsNr, cache.CategoryProcess, payload); err != nil {
			s.logger.Warn("amt: cache write failed", "bfs_nr", bfsNr, "category", "process", "error", err)
		}
	}
	return builtAt
}
