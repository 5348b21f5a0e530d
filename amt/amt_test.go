package amt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/amtinfo/amt/internal/fetch"
	"github.com/hazyhaar/amtinfo/dbopen"
	"github.com/hazyhaar/amtinfo/urlguard"
)

// municipalSite fakes a small municipal website: homepage with navigation,
// a registration page, and no sitemap.
func municipalSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<html><body>
			<a href="/verwaltung/einwohnerkontrolle">Einwohnerkontrolle</a>
			<a href="/freizeit">Freizeit</a>
		</body></html>`))
	})
	mux.HandleFunc("/verwaltung/einwohnerkontrolle", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Einwohnerkontrolle Testwil - Anmeldung</title>
			<meta name="description" content="Anmeldung und Abmeldung bei der Einwohnerkontrolle">
			</head><body><h1>Einwohnerkontrolle</h1>
			<p>Testwil Öffnungszeiten: Montag bis Freitag 08:30-11:30 Uhr</p>
			<p>Telefon 056 200 10 10, einwohner@testwil.ch</p>
			<p>Anmeldung innert 14 Tagen. Schalter im Gemeindehaus.</p>
			</body></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type staticGen struct{ out string }

func (g staticGen) Generate(context.Context, string, string, int) (string, error) {
	return g.out, nil
}

const genJSON = `{
	"monday": {"morning": "08:30-11:30"}, "tuesday": {"morning": "08:30-11:30"},
	"wednesday": {"morning": "08:30-11:30"}, "thursday": {"morning": "08:30-11:30"},
	"friday": {"morning": "08:30-11:30"}, "saturday": {"closed": true}, "sunday": {"closed": true},
	"phone": "056 200 10 10", "email": "einwohner@testwil.ch",
	"website": "", "registration_url": "", "confidence": 0.85
}`

func testService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	fetcher := fetch.New(fetch.Config{URLValidator: urlguard.AllowAll})
	opts = append([]Option{WithFetcher(fetcher)}, opts...)

	svc, err := New(dbopen.OpenMemory(t), dbopen.OpenMemory(t), Config{}, nil, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := svc.SeedDataset(context.Background()); err != nil {
		t.Fatalf("SeedDataset: %v", err)
	}
	return svc
}

func TestResolve_PostalCodeAndSubLocality(t *testing.T) {
	// WHAT: A postal code resolves directly; a village name resolves to its
	// parent municipality while echoing the village.
	svc := testService(t)
	ctx := context.Background()

	res, err := svc.Resolve(ctx, "8001", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.BFSNr != 261 || res.Name != "Zürich" {
		t.Errorf("resolved: %+v", res)
	}

	res, err = svc.Resolve(ctx, "Kleindöttingen", "AG")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Name != "Böttstein" || res.SubLocality != "Kleindöttingen" {
		t.Errorf("resolved: %+v", res)
	}
}

func TestResolve_NotFound(t *testing.T) {
	svc := testService(t)
	_, err := svc.Resolve(context.Background(), "Atlantis", "")
	if err == nil || !strings.Contains(err.Error(), "postal code") {
		t.Fatalf("want not-found with hint, got %v", err)
	}
}

func TestLookup_ExtractsAndCaches(t *testing.T) {
	// WHAT: First lookup walks the site and extracts; the second is served
	// from the cache with the same build timestamp.
	site := municipalSite(t)
	svc := testService(t, WithGenerator(staticGen{out: genJSON}))
	ctx := context.Background()

	// Point a seeded municipality at the fake site.
	a, err := svc.data.Get(ctx, 261)
	if err != nil || a == nil {
		t.Fatalf("Get: %v", err)
	}
	a.Website = site.URL
	a.RegistrationPages = nil
	if err := svc.data.Upsert(ctx, a); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	first, err := svc.Lookup(ctx, "8001", "", InfoOptions{})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if first.Cached || !first.FromModel {
		t.Fatalf("first lookup: cached=%v fromModel=%v", first.Cached, first.FromModel)
	}
	if first.Info.Phone != "056 200 10 10" {
		t.Errorf("extracted phone: %q", first.Info.Phone)
	}
	// The discovered registration page scores high enough to set the URL.
	if !strings.Contains(first.Info.RegistrationURL, "einwohnerkontrolle") {
		t.Errorf("registration URL: %q", first.Info.RegistrationURL)
	}

	second, err := svc.Lookup(ctx, "8001", "", InfoOptions{})
	if err != nil {
		t.Fatalf("second Lookup: %v", err)
	}
	if !second.Cached || !second.FromModel {
		t.Fatalf("second lookup: cached=%v fromModel=%v", second.Cached, second.FromModel)
	}
	if second.Info.Phone != first.Info.Phone {
		t.Errorf("cached record differs: %q", second.Info.Phone)
	}
	// The fresh response and its cache hits report the same build time;
	// the fresh path must use the stored millisecond timestamp, not a
	// second nanosecond clock read.
	if !second.CachedAt.Equal(first.CachedAt) {
		t.Errorf("fresh CachedAt %v != cached CachedAt %v", first.CachedAt, second.CachedAt)
	}

	third, err := svc.Lookup(ctx, "8001", "", InfoOptions{})
	if err != nil {
		t.Fatalf("third Lookup: %v", err)
	}
	if !third.CachedAt.Equal(second.CachedAt) {
		t.Errorf("cache hits must report the same build time: %v vs %v",
			third.CachedAt, second.CachedAt)
	}
}

func TestLookup_UnreachableSiteYieldsDefault(t *testing.T) {
	// WHAT: A dead website still produces a complete record at the
	// conservative default confidence.
	// WHY: Informational content degrades, it does not error.
	svc := testService(t, WithGenerator(staticGen{out: genJSON}))
	ctx := context.Background()

	a, _ := svc.data.Get(ctx, 261)
	a.Website = "http://127.0.0.1:1/unreachable"
	a.RegistrationPages = nil
	if err := svc.data.Upsert(ctx, a); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	res, err := svc.Lookup(ctx, "Zürich", "", InfoOptions{})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.FromModel {
		t.Error("dead site should not produce a model record")
	}
	if res.Info.Confidence != 0.5 {
		t.Errorf("default confidence: %f", res.Info.Confidence)
	}
	if res.Info.Monday.Morning == "" || len(res.Info.RequiredDocuments) == 0 {
		t.Errorf("default record incomplete: %+v", res.Info)
	}
}

func TestForceRefreshRebuilds(t *testing.T) {
	// WHAT: ForceRefresh bypasses a fresh cache entry and advances the
	// build timestamp.
	site := municipalSite(t)
	svc := testService(t, WithGenerator(staticGen{out: genJSON}))
	ctx := context.Background()

	a, _ := svc.data.Get(ctx, 4303)
	a.Website = site.URL
	a.RegistrationPages = nil
	if err := svc.data.Upsert(ctx, a); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	first, err := svc.Lookup(ctx, "Böttstein", "", InfoOptions{})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	time.Sleep(5 * time.Millisecond) // UnixMilli resolution in the cache
	again, err := svc.Lookup(ctx, "Böttstein", "", InfoOptions{ForceRefresh: true})
	if err != nil {
		t.Fatalf("force refresh: %v", err)
	}
	if again.Cached {
		t.Error("force refresh served from cache")
	}
	if !again.CachedAt.After(first.CachedAt) {
		t.Errorf("timestamp did not advance: %v vs %v", again.CachedAt, first.CachedAt)
	}
}

func TestRefreshByBFSNr(t *testing.T) {
	// WHAT: The admin refresh works from a BFS number alone and rejects
	// unknown municipalities.
	site := municipalSite(t)
	svc := testService(t, WithGenerator(staticGen{out: genJSON}))
	ctx := context.Background()

	a, _ := svc.data.Get(ctx, 4303)
	a.Website = site.URL
	if err := svc.data.Upsert(ctx, a); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	res, err := svc.Refresh(ctx, 4303)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Cached {
		t.Error("refresh must rebuild")
	}

	if _, err := svc.Refresh(ctx, 99999); err == nil {
		t.Error("unknown BFS number should fail")
	}
}

func TestCuratedRegistrationPageWins(t *testing.T) {
	// WHAT: A curated registration page in the dataset short-circuits
	// discovery and sets the registration URL outright.
	site := municipalSite(t)
	svc := testService(t, WithGenerator(staticGen{out: genJSON}))
	ctx := context.Background()

	curated := site.URL + "/verwaltung/einwohnerkontrolle"
	a, _ := svc.data.Get(ctx, 261)
	a.Website = site.URL
	a.RegistrationPages = []string{curated}
	if err := svc.data.Upsert(ctx, a); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	res, err := svc.Lookup(ctx, "8001", "", InfoOptions{})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.Info.RegistrationURL != curated {
		t.Errorf("registration URL: %q", res.Info.RegistrationURL)
	}
}
