package resolve

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/amtinfo/amt/internal/civicdata"
	"github.com/hazyhaar/amtinfo/amt/internal/dataset"
	"github.com/hazyhaar/amtinfo/dbopen"
)

func testResolver(t *testing.T, dir Directory) *Resolver {
	t.Helper()
	s := dataset.New(dbopen.OpenMemory(t))
	ctx := context.Background()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := s.ImportSeed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return New(s, dir, Config{}, slog.Default())
}

func TestResolve_PostalCode(t *testing.T) {
	// WHAT: A 4-digit query resolves via the postal-code index.
	r := testResolver(t, nil)
	res, err := r.Resolve(context.Background(), "8001", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Name != "Zürich" || res.Tier != "postal_code" {
		t.Errorf("got %+v", res)
	}
	if res.SubLocality != "Zürich" {
		t.Errorf("sub-locality should echo canonical name: %q", res.SubLocality)
	}
}

func TestResolve_ExactName_CaseInsensitive(t *testing.T) {
	// WHAT: resolve("ZÜRICH") == resolve("zürich").
	r := testResolver(t, nil)
	ctx := context.Background()
	a, err := r.Resolve(ctx, "ZÜRICH", "")
	if err != nil {
		t.Fatalf("upper: %v", err)
	}
	b, err := r.Resolve(ctx, "zürich", "")
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	if a.BFSNr != b.BFSNr || a.BFSNr != 261 {
		t.Errorf("mismatch: %d vs %d", a.BFSNr, b.BFSNr)
	}
}

func TestResolve_NormalizedName(t *testing.T) {
	// WHAT: ASCII spellings of umlaut names match via normalization.
	r := testResolver(t, nil)
	res, err := r.Resolve(context.Background(), "Boettstein", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Name != "Böttstein" || res.Tier != "normalized_name" {
		t.Errorf("got %+v", res)
	}
}

func TestResolve_SubLocality(t *testing.T) {
	// WHAT: A village name resolves to its parent municipality and is echoed.
	// WHY: Post-merger localities administratively belong to a larger neighbor.
	r := testResolver(t, nil)
	res, err := r.Resolve(context.Background(), "Kleindöttingen", "AG")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Name != "Böttstein" {
		t.Errorf("parent: %q", res.Name)
	}
	if res.SubLocality != "Kleindöttingen" {
		t.Errorf("echoed sub-locality: %q", res.SubLocality)
	}
	if res.Tier != "sub_locality" {
		t.Errorf("tier: %q", res.Tier)
	}
}

func TestResolve_Fuzzy(t *testing.T) {
	// WHAT: A typo within the similarity threshold still resolves.
	r := testResolver(t, nil)
	res, err := r.Resolve(context.Background(), "Winterthurr", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Name != "Winterthur" || res.Tier != "fuzzy" {
		t.Errorf("got %+v", res)
	}
}

type fakeDirectory struct {
	rec *civicdata.Record
	err error
}

func (f *fakeDirectory) LookupByName(_ context.Context, _, _ string) (*civicdata.Record, error) {
	return f.rec, f.err
}

func TestResolve_DirectoryFallback(t *testing.T) {
	// WHAT: A name absent from the internal dataset falls through to the
	// external directory and is normalized into the same shape.
	dir := &fakeDirectory{rec: &civicdata.Record{ID: 6002, Name: "Zermatt", Canton: "VS", Website: "https://www.zermatt.ch"}}
	r := testResolver(t, dir)
	res, err := r.Resolve(context.Background(), "Zermatt", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.BFSNr != 6002 || res.Tier != "civic_directory" {
		t.Errorf("got %+v", res)
	}
}

func TestResolve_NotFound(t *testing.T) {
	// WHAT: Exhaustion yields NotFoundError with a remediation hint.
	r := testResolver(t, &fakeDirectory{})
	_, err := r.Resolve(context.Background(), "Atlantis-Unterwasser", "")
	if err == nil {
		t.Fatal("want error")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Hint == "" {
		t.Errorf("missing hint: %v", err)
	}
}

func TestResolve_TierErrorIsSoft(t *testing.T) {
	// WHAT: An erroring external directory does not break earlier tiers,
	// and an erroring tier advances the chain instead of failing it.
	dir := &fakeDirectory{err: errors.New("directory down")}
	r := testResolver(t, dir)
	ctx := context.Background()

	// Earlier tier still wins.
	if _, err := r.Resolve(ctx, "Bern", ""); err != nil {
		t.Fatalf("bern: %v", err)
	}

	// All tiers miss, directory errors → NotFound, not the directory error.
	_, err := r.Resolve(ctx, "Atlantis-Unterwasser", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestResolve_CantonHint(t *testing.T) {
	// WHAT: The canton hint restricts matches.
	r := testResolver(t, nil)
	_, err := r.Resolve(context.Background(), "Bern", "ZH")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Bern in ZH should not resolve, got %v", err)
	}
}
