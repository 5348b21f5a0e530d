// CLAUDE:SUMMARY Prompt construction and keyword-based excerpt filtering under a fixed character budget.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// systemPrompt pins the model to the fixed wire contract: one JSON object,
// no prose. The key set here is the one contract shared with consumers —
// do not extend it without versioning.
const systemPrompt = `You extract resident-registration information for a Swiss municipal office from website text.
Respond with exactly one JSON object and nothing else - no prose, no markdown fences.
Schema:
{
  "monday": {"morning": "HH:MM-HH:MM", "afternoon": "HH:MM-HH:MM"} or {"closed": true},
  "tuesday": ..., "wednesday": ..., "thursday": ..., "friday": ..., "saturday": ..., "sunday": ...,
  "phone": "...", "email": "...", "website": "...",
  "registration_url": "...",
  "confidence": 0.0-1.0,
  "last_checked": "RFC3339 timestamp"
}
Omit morning or afternoon when the office is closed during that half-day.
Use empty strings for unknown contact fields and lower the confidence accordingly.`

func userPrompt(authorityName, pageText string) string {
	return fmt.Sprintf("Municipality: %s\n\nWebsite text:\n%s", authorityName, pageText)
}

// excerptKeywords mark lines worth sending to the model: opening hours,
// weekday names, and contact vocabulary across DE/FR/IT/EN.
var excerptKeywords = []string{
	"öffnungszeiten", "offnungszeiten", "schalter", "uhr", "kontakt",
	"telefon", "tel.", "e-mail", "email", "@", "adresse",
	"montag", "dienstag", "mittwoch", "donnerstag", "freitag", "samstag", "sonntag",
	"lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi", "dimanche",
	"horaires", "heures d'ouverture",
	"lunedì", "lunedi", "martedì", "martedi", "mercoledì", "giovedì", "venerdì",
	"orari", "sportello",
	"monday", "tuesday", "wednesday", "thursday", "friday", "opening hours",
	"anmeld", "inscription", "iscrizione", "registration",
	"dokument", "unterlagen", "gebühr", "gebuhr", "chf", "fr.",
}

var timePattern = regexp.MustCompile(`\d{1,2}[:.]\d{2}`)

// relevantExcerpt keeps the lines most likely to contain hours and contact
// info, bounded to budget characters. When filtering leaves too little, the
// head of the text is used instead — a short page is cheap enough to send
// whole.
func relevantExcerpt(text string, budget int) string {
	var sb strings.Builder
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !lineRelevant(trimmed) {
			continue
		}
		if sb.Len()+len(trimmed)+1 > budget {
			break
		}
		sb.WriteString(trimmed)
		sb.WriteByte('\n')
	}

	if sb.Len() >= 200 {
		return sb.String()
	}
	// Too little survived the filter; fall back to the document head.
	if len(text) > budget {
		cut := budget
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		return text[:cut]
	}
	return text
}

func lineRelevant(line string) bool {
	lower := strings.ToLower(line)
	if timePattern.MatchString(lower) {
		return true
	}
	for _, k := range excerptKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
