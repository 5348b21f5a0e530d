// CLAUDE:SUMMARY YAML dataset import plus an embedded starter seed of well-known municipalities.
package dataset

import (
	"context"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

type importFile struct {
	Authorities []*Authority `yaml:"authorities"`
}

// ImportYAML reads an authorities YAML document and upserts every record.
// Returns the number of imported authorities.
func (s *Store) ImportYAML(ctx context.Context, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("dataset: read import: %w", err)
	}
	var f importFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("dataset: parse import: %w", err)
	}
	return s.importAll(ctx, f.Authorities)
}

// ImportSeed loads the embedded starter seed. Idempotent; intended for
// first-run setups and tests so the binary works before a full BFS import.
func (s *Store) ImportSeed(ctx context.Context) (int, error) {
	var f importFile
	if err := yaml.Unmarshal(seedYAML, &f); err != nil {
		return 0, fmt.Errorf("dataset: parse seed: %w", err)
	}
	return s.importAll(ctx, f.Authorities)
}

// importAll validates and upserts records. Both import paths go through the
// same guard so a record whose keys failed to map aborts loudly instead of
// collapsing into a bfs_nr=0 row.
func (s *Store) importAll(ctx context.Context, authorities []*Authority) (int, error) {
	for _, a := range authorities {
		if a.BFSNr <= 0 || a.Name == "" || a.Canton == "" {
			return 0, fmt.Errorf("dataset: invalid record (bfs_nr=%d name=%q)", a.BFSNr, a.Name)
		}
		if err := s.Upsert(ctx, a); err != nil {
			return 0, err
		}
	}
	return len(authorities), nil
}
