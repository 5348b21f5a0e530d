package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeGen struct {
	out string
	err error
	// captured prompt for assertions
	lastUser string
}

func (f *fakeGen) Generate(_ context.Context, _ string, userPrompt string, _ int) (string, error) {
	f.lastUser = userPrompt
	return f.out, f.err
}

const modelJSON = `{
	"monday": {"morning": "08:30-11:30", "afternoon": "14:00-18:00"},
	"tuesday": {"morning": "08:30-11:30"},
	"wednesday": {"closed": true},
	"thursday": {"morning": "08:30-11:30", "afternoon": "14:00-17:00"},
	"friday": {"morning": "07:30-14:00"},
	"saturday": {"closed": true},
	"sunday": {"closed": true},
	"phone": "+41 56 269 21 00",
	"email": "gemeindekanzlei@boettstein.ch",
	"website": "https://www.boettstein.ch",
	"registration_url": "https://www.boettstein.ch/anmeldung",
	"confidence": 0.9,
	"last_checked": "2026-08-01T09:00:00Z"
}`

func TestExtract_Success(t *testing.T) {
	// WHAT: Clean model JSON becomes a fully populated record.
	a := New(&fakeGen{out: modelJSON}, Config{}, nil)
	out := a.Extract(context.Background(), Request{
		PageContent:   "Öffnungszeiten: Montag 08:30-11:30 Uhr",
		AuthorityName: "Böttstein",
		Website:       "https://www.boettstein.ch",
	})
	if !out.FromModel || out.FailureReason != "" {
		t.Fatalf("outcome: %+v", out)
	}
	info := out.Info
	if info.Monday.Morning != "08:30-11:30" || !info.Wednesday.Closed {
		t.Errorf("hours: %+v", info)
	}
	if info.Phone == "" || info.Email == "" {
		t.Errorf("contact: %+v", info)
	}
	if info.Confidence != 0.9 {
		t.Errorf("confidence: %f", info.Confidence)
	}
	// Non-wire fields are still populated.
	if len(info.RequiredDocuments) == 0 || info.Fees == "" {
		t.Errorf("defaults not merged: %+v", info)
	}
}

func TestExtract_FencedOutput(t *testing.T) {
	// WHAT: Markdown fences and prose around the JSON are tolerated.
	a := New(&fakeGen{out: "Here you go:\n```json\n" + modelJSON + "\n```\nHope this helps!"}, Config{}, nil)
	out := a.Extract(context.Background(), Request{PageContent: "Öffnungszeiten 08:00", AuthorityName: "X"})
	if !out.FromModel {
		t.Fatalf("fenced output rejected: %+v", out)
	}
}

func TestExtract_GarbageNeverThrows(t *testing.T) {
	// WHAT: Malformed model output substitutes the default record.
	// WHY: The adapter's contract — stale generic guidance beats breakage.
	for _, bad := range []string{"", "not json", "{broken", "[]"} {
		a := New(&fakeGen{out: bad}, Config{}, nil)
		out := a.Extract(context.Background(), Request{
			PageContent:   "Öffnungszeiten: 08:00-11:30",
			AuthorityName: "Musterwil",
			Website:       "https://www.musterwil.ch",
		})
		if out.FromModel {
			t.Errorf("%q: should have failed", bad)
		}
		if out.Info == nil || out.Info.Confidence > 0.5 {
			t.Errorf("%q: default confidence: %+v", bad, out.Info)
		}
		if out.Info.Monday.Morning == "" {
			t.Errorf("%q: default hours missing", bad)
		}
		if out.FailureReason == "" {
			t.Errorf("%q: missing failure reason", bad)
		}
	}
}

func TestExtract_ModelErrorSubstitutesDefault(t *testing.T) {
	a := New(&fakeGen{err: errors.New("model down")}, Config{}, nil)
	out := a.Extract(context.Background(), Request{PageContent: "Öffnungszeiten 09:00", Website: "https://www.x.ch"})
	if out.FromModel || out.Info == nil {
		t.Fatalf("outcome: %+v", out)
	}
	if out.Info.RegistrationURL != "https://www.x.ch/anmeldung" {
		t.Errorf("fallback URL: %q", out.Info.RegistrationURL)
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	// WHAT: Empty input yields the default record with confidence ≤ 0.5.
	a := New(&fakeGen{out: modelJSON}, Config{}, nil)
	out := a.Extract(context.Background(), Request{PageContent: "   ", AuthorityName: "X"})
	if out.FromModel || out.Info.Confidence > 0.5 {
		t.Fatalf("outcome: %+v", out.Info)
	}
}

func TestExtract_DiscoveryOverride(t *testing.T) {
	// WHAT: A candidate at or above 0.7 overrides the model's registration
	// URL; below it the model's URL stands.
	gen := &fakeGen{out: modelJSON}
	a := New(gen, Config{}, nil)

	out := a.Extract(context.Background(), Request{
		PageContent: "Öffnungszeiten 08:00", AuthorityName: "Böttstein",
		BestURL: "https://www.boettstein.ch/online-schalter", BestScore: 0.85,
	})
	if out.Info.RegistrationURL != "https://www.boettstein.ch/online-schalter" {
		t.Errorf("override missing: %q", out.Info.RegistrationURL)
	}

	out = a.Extract(context.Background(), Request{
		PageContent: "Öffnungszeiten 08:00", AuthorityName: "Böttstein",
		BestURL: "https://www.boettstein.ch/irgendwo", BestScore: 0.5,
	})
	if out.Info.RegistrationURL != "https://www.boettstein.ch/anmeldung" {
		t.Errorf("model URL should stand: %q", out.Info.RegistrationURL)
	}
}

func TestExtract_ExcerptBudget(t *testing.T) {
	// WHAT: The prompt never exceeds the character budget by much and
	// prefers hour/contact lines.
	long := strings.Repeat("Irrelevante Zeile über das Dorffest.\n", 500) +
		"Öffnungszeiten: Montag 08:00-11:30\nTelefon 056 269 21 00\n" +
		strings.Repeat("Noch mehr Text.\n", 500)
	gen := &fakeGen{out: modelJSON}
	a := New(gen, Config{ExcerptBudget: 500}, nil)
	a.Extract(context.Background(), Request{PageContent: long, AuthorityName: "X"})

	if len(gen.lastUser) > 700 { // budget + prompt scaffolding
		t.Errorf("prompt too large: %d", len(gen.lastUser))
	}
}

func TestRelevantExcerpt_FiltersLines(t *testing.T) {
	text := "Das Dorffest war ein voller Erfolg.\n" +
		"Öffnungszeiten Schalter:\n" +
		"Montag 08:00-11:30 und 14:00-17:00 Uhr\n" +
		"Dienstag 08:00-11:30 und 14:00-17:00 Uhr\n" +
		"Mittwoch 08:00-11:30 und 14:00-17:00 Uhr\n" +
		"Donnerstag 08:00-11:30 und 14:00-18:30 Uhr\n" +
		"Freitag 08:00-14:00 Uhr durchgehend\n" +
		"Telefon: 056 123 45 67\n" +
		"E-Mail: kanzlei@musterwil.ch\n" +
		strings.Repeat("Prosa zur Geschichte des Dorfes und seiner Vereine.\n", 20)
	got := relevantExcerpt(text, 4000)
	if !strings.Contains(got, "Öffnungszeiten") || !strings.Contains(got, "Telefon") {
		t.Errorf("relevant lines missing: %q", got)
	}
	if strings.Contains(got, "Dorffest") || strings.Contains(got, "Prosa") {
		t.Errorf("irrelevant line kept: %q", got)
	}
}

func TestParseModelJSON_Invariants(t *testing.T) {
	// WHAT: Confidence clamps to [0,1]; a day without ranges becomes closed.
	now := time.Now()
	info, err := parseModelJSON(`{"monday":{},"confidence":7}`, now)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if info.Confidence != 1 {
		t.Errorf("clamp: %f", info.Confidence)
	}
	if !info.Monday.Closed || !info.Sunday.Closed {
		t.Errorf("empty days must close: %+v", info.Monday)
	}
	if !info.LastChecked.Equal(now) {
		t.Errorf("timestamp fallback: %v", info.LastChecked)
	}
}
