// CLAUDE:SUMMARY Fail-soft AI extraction adapter: page text → structured authority info, default record on any failure.
// Package extract turns raw page text into a structured authority-info
// record via a generative model.
//
// The adapter's contract is "always returns a usable record": model errors,
// malformed output, and empty input all degrade to a static default record
// with conservative confidence. Stale generic guidance beats a broken
// feature for informational content, so nothing here ever reaches the
// caller as an error.
package extract

import (
	"context"
	"log/slog"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// DayHours is one weekday's counter hours. Either the morning/afternoon
// ranges are set or Closed is true.
type DayHours struct {
	Morning   string `json:"morning,omitempty"`   // "08:00-11:30"
	Afternoon string `json:"afternoon,omitempty"` // "13:30-17:00"
	Closed    bool   `json:"closed,omitempty"`
}

// Info is the fully populated authority-info record. Every field carries a
// usable value even when extraction failed; consumers never see partial
// nulls.
type Info struct {
	Monday    DayHours `json:"monday"`
	Tuesday   DayHours `json:"tuesday"`
	Wednesday DayHours `json:"wednesday"`
	Thursday  DayHours `json:"thursday"`
	Friday    DayHours `json:"friday"`
	Saturday  DayHours `json:"saturday"`
	Sunday    DayHours `json:"sunday"`

	Phone           string `json:"phone"`
	Email           string `json:"email"`
	Address         string `json:"address,omitempty"`
	Website         string `json:"website"`
	RegistrationURL string `json:"registration_url"`

	RequiredDocuments []string `json:"required_documents"`
	Fees              string   `json:"fees"`
	SpecialNotices    []string `json:"special_notices,omitempty"`

	Confidence  float64   `json:"confidence"` // in [0,1]
	LastChecked time.Time `json:"last_checked"`
}

// Outcome reports how a record was produced. Failure is data, not an error:
// the orchestrator maps it deterministically to the default record already
// embedded in Info.
type Outcome struct {
	Info          *Info
	FromModel     bool   // false when the default record was substituted
	FailureReason string // empty on success
}

// Generator produces free-form text from a prompt. Implemented by ChatClient
// and by test fakes.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// Request carries one extraction job.
type Request struct {
	// PageContent is the best discovered page, HTML or plain text.
	PageContent string
	// AuthorityName for prompt context and fallback values.
	AuthorityName string
	// Website is the authority's official site, used for deterministic
	// fallback URLs.
	Website string
	// BestURL is the top discovered candidate, if any.
	BestURL string
	// BestScore is that candidate's relevance score.
	BestScore float64
}

// Config configures the adapter.
type Config struct {
	// ExcerptBudget caps the characters of page text sent to the model.
	// Default: 4000.
	ExcerptBudget int
	// MaxTokens for the model response. Default: 900.
	MaxTokens int
	// OverrideThreshold: a discovered candidate at or above this score
	// overrides the model's registration URL. Default: 0.7.
	OverrideThreshold float64
	// DefaultConfidence assigned to substituted default records. Default: 0.5.
	DefaultConfidence float64
}

func (c *Config) defaults() {
	if c.ExcerptBudget <= 0 {
		c.ExcerptBudget = 4000
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 900
	}
	if c.OverrideThreshold <= 0 {
		c.OverrideThreshold = 0.7
	}
	if c.DefaultConfidence <= 0 {
		c.DefaultConfidence = 0.5
	}
}

// Adapter runs extractions.
type Adapter struct {
	gen    Generator
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Adapter. gen may be nil, in which case every extraction
// yields the default record.
func New(gen Generator, cfg Config, logger *slog.Logger) *Adapter {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{gen: gen, config: cfg, logger: logger, now: time.Now}
}

// Extract produces an Info record for req. It never returns an error; every
// failure path substitutes the default record and reports the reason in the
// Outcome.
func (a *Adapter) Extract(ctx context.Context, req Request) *Outcome {
	fallbackURL := a.fallbackRegistrationURL(req)

	if a.gen == nil {
		return a.defaultOutcome(req, fallbackURL, "no generator configured")
	}
	text := a.prepare(req.PageContent)
	if strings.TrimSpace(text) == "" {
		return a.defaultOutcome(req, fallbackURL, "empty page content")
	}

	raw, err := a.gen.Generate(ctx, systemPrompt, userPrompt(req.AuthorityName, text), a.config.MaxTokens)
	if err != nil {
		a.logger.Warn("extract: model call failed", "authority", req.AuthorityName, "error", err)
		return a.defaultOutcome(req, fallbackURL, "model: "+err.Error())
	}

	info, err := parseModelJSON(raw, a.now())
	if err != nil {
		a.logger.Warn("extract: unparseable model output", "authority", req.AuthorityName, "error", err)
		return a.defaultOutcome(req, fallbackURL, "parse: "+err.Error())
	}

	a.finalize(info, req, fallbackURL)
	return &Outcome{Info: info, FromModel: true}
}

// prepare converts HTML to markdown when the content looks like markup,
// then trims it to the relevant excerpt budget.
func (a *Adapter) prepare(content string) string {
	text := content
	if strings.Contains(content, "<html") || strings.Contains(content, "<body") ||
		strings.Contains(content, "</div>") || strings.Contains(content, "</p>") {
		if md, err := htmltomarkdown.ConvertString(content); err == nil && strings.TrimSpace(md) != "" {
			text = md
		}
	}
	return relevantExcerpt(text, a.config.ExcerptBudget)
}

// finalize fills the non-wire fields and applies the discovery override:
// deterministic discovery outranks generative inference for the
// registration URL when the candidate is confident enough.
func (a *Adapter) finalize(info *Info, req Request, fallbackURL string) {
	if req.BestURL != "" && req.BestScore >= a.config.OverrideThreshold {
		info.RegistrationURL = req.BestURL
	}
	if info.RegistrationURL == "" {
		info.RegistrationURL = fallbackURL
	}
	if info.Website == "" {
		info.Website = req.Website
	}
	if len(info.RequiredDocuments) == 0 {
		info.RequiredDocuments = defaultRequiredDocuments()
	}
	if info.Fees == "" {
		info.Fees = defaultFees
	}
}

func (a *Adapter) defaultOutcome(req Request, fallbackURL, reason string) *Outcome {
	info := DefaultInfo(req.Website, a.now())
	info.Confidence = a.config.DefaultConfidence
	info.RegistrationURL = fallbackURL
	return &Outcome{Info: info, FromModel: false, FailureReason: reason}
}

// fallbackRegistrationURL prefers the best discovered candidate and falls
// back to the conventional /anmeldung path on the official site.
func (a *Adapter) fallbackRegistrationURL(req Request) string {
	if req.BestURL != "" {
		return req.BestURL
	}
	if req.Website != "" {
		return strings.TrimRight(req.Website, "/") + "/anmeldung"
	}
	return ""
}
