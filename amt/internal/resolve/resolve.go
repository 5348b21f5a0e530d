// CLAUDE:SUMMARY Ordered strategy chain resolving free-text/PLZ queries to a canonical municipality.
// Package resolve maps an ambiguous location query (postal code, municipality
// name, or sub-locality) to a canonical authority.
//
// Resolution runs an ordered strategy chain; the first tier that produces a
// result wins. A data-source error inside a tier is logged and treated as
// "no result" so the chain advances — only full exhaustion surfaces an error.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/hazyhaar/amtinfo/amt/internal/civicdata"
	"github.com/hazyhaar/amtinfo/amt/internal/dataset"
)

// ErrNotFound is matched by errors.Is for any resolution exhaustion.
var ErrNotFound = errors.New("resolve: no authority matched")

// NotFoundError reports resolution exhaustion with a remediation hint.
type NotFoundError struct {
	Query string
	Hint  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resolve: no authority matched %q (%s)", e.Query, e.Hint)
}

// Is makes errors.Is(err, ErrNotFound) true for NotFoundError values.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Resolved is a successfully resolved authority.
type Resolved struct {
	BFSNr             int      `json:"bfs_nr"`
	Name              string   `json:"name"`
	SubLocality       string   `json:"sub_locality"`
	Canton            string   `json:"canton"`
	Website           string   `json:"website,omitempty"`
	RegistrationPages []string `json:"registration_pages,omitempty"`
	Tier              string   `json:"tier"` // which strategy matched
}

// Dataset is the canonical municipality store consumed by the resolver.
// *dataset.Store satisfies it.
type Dataset interface {
	ByPostalCode(ctx context.Context, plz, canton string) (*dataset.Authority, error)
	ByName(ctx context.Context, name, canton string) (*dataset.Authority, error)
	ByNormalizedName(ctx context.Context, norm, canton string) (*dataset.Authority, error)
	BySubLocality(ctx context.Context, name, canton string) (*dataset.Authority, string, error)
	FuzzyByName(ctx context.Context, query, canton string, threshold float64) ([]dataset.Match, error)
	Get(ctx context.Context, bfsNr int) (*dataset.Authority, error)
}

// Directory is the external open civic dataset, the last-resort tier.
// *civicdata.Client satisfies it.
type Directory interface {
	LookupByName(ctx context.Context, name, canton string) (*civicdata.Record, error)
}

// Config configures the resolver.
type Config struct {
	// FuzzyThreshold is the minimum similarity for the fuzzy tier. Default: 0.6.
	// The measure itself (trigram Dice) lives behind Dataset.FuzzyByName and
	// can be swapped by substituting the Dataset implementation.
	FuzzyThreshold float64
}

func (c *Config) defaults() {
	if c.FuzzyThreshold <= 0 {
		c.FuzzyThreshold = 0.6
	}
}

// Resolver runs the strategy chain.
type Resolver struct {
	data   Dataset
	dir    Directory // nil disables the external tier
	config Config
	logger *slog.Logger
}

// New creates a Resolver. dir may be nil.
func New(data Dataset, dir Directory, cfg Config, logger *slog.Logger) *Resolver {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{data: data, dir: dir, config: cfg, logger: logger}
}

var plzPattern = regexp.MustCompile(`^[1-9]\d{3}$`)

type strategy struct {
	name string
	run  func(ctx context.Context, query, canton string) (*Resolved, error)
}

// Resolve maps query to an authority, trying each tier in order. cantonHint
// may be empty. Returns *NotFoundError when every tier is exhausted.
func (r *Resolver) Resolve(ctx context.Context, query, cantonHint string) (*Resolved, error) {
	chain := []strategy{
		{"postal_code", r.byPostalCode},
		{"exact_name", r.byExactName},
		{"normalized_name", r.byNormalizedName},
		{"sub_locality", r.bySubLocality},
		{"fuzzy", r.byFuzzy},
		{"civic_directory", r.byDirectory},
	}

	for _, tier := range chain {
		res, err := tier.run(ctx, query, cantonHint)
		if err != nil {
			// Tier errors are soft: log and fall through to the next tier.
			r.logger.Warn("resolve: tier failed, continuing",
				"tier", tier.name, "query", query, "error", err)
			continue
		}
		if res != nil {
			res.Tier = tier.name
			r.logger.Debug("resolve: matched", "tier", tier.name,
				"query", query, "bfs_nr", res.BFSNr, "name", res.Name)
			return res, nil
		}
	}

	return nil, &NotFoundError{
		Query: query,
		Hint:  "check the spelling or try the 4-digit postal code",
	}
}

func (r *Resolver) byPostalCode(ctx context.Context, query, canton string) (*Resolved, error) {
	if !plzPattern.MatchString(query) {
		return nil, nil
	}
	a, err := r.data.ByPostalCode(ctx, query, canton)
	if err != nil || a == nil {
		return nil, err
	}
	return fromAuthority(a, a.Name), nil
}

func (r *Resolver) byExactName(ctx context.Context, query, canton string) (*Resolved, error) {
	a, err := r.data.ByName(ctx, query, canton)
	if err != nil || a == nil {
		return nil, err
	}
	return fromAuthority(a, a.Name), nil
}

func (r *Resolver) byNormalizedName(ctx context.Context, query, canton string) (*Resolved, error) {
	a, err := r.data.ByNormalizedName(ctx, dataset.Normalize(query), canton)
	if err != nil || a == nil {
		return nil, err
	}
	return fromAuthority(a, a.Name), nil
}

// bySubLocality is mandatory, not an optimization: after municipal mergers a
// well-known village name often belongs to a larger neighboring authority,
// and residents search by the village name.
func (r *Resolver) bySubLocality(ctx context.Context, query, canton string) (*Resolved, error) {
	parent, alias, err := r.data.BySubLocality(ctx, query, canton)
	if err != nil || parent == nil {
		return nil, err
	}
	return fromAuthority(parent, alias), nil
}

func (r *Resolver) byFuzzy(ctx context.Context, query, canton string) (*Resolved, error) {
	if plzPattern.MatchString(query) {
		return nil, nil
	}
	matches, err := r.data.FuzzyByName(ctx, query, canton, r.config.FuzzyThreshold)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	a, err := r.data.Get(ctx, matches[0].BFSNr)
	if err != nil || a == nil {
		return nil, err
	}
	return fromAuthority(a, a.Name), nil
}

func (r *Resolver) byDirectory(ctx context.Context, query, canton string) (*Resolved, error) {
	if r.dir == nil {
		return nil, nil
	}
	rec, err := r.dir.LookupByName(ctx, query, canton)
	if err != nil || rec == nil {
		return nil, err
	}
	return &Resolved{
		BFSNr:       rec.ID,
		Name:        rec.Name,
		SubLocality: rec.Name,
		Canton:      rec.Canton,
		Website:     rec.Website,
	}, nil
}

func fromAuthority(a *dataset.Authority, subLocality string) *Resolved {
	return &Resolved{
		BFSNr:             a.BFSNr,
		Name:              a.Name,
		SubLocality:       subLocality,
		Canton:            a.Canton,
		Website:           a.Website,
		RegistrationPages: a.RegistrationPages,
	}
}
