// CLAUDE:SUMMARY Defensive parsing of model output: fence stripping, JSON object isolation, field clamping.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// wireInfo mirrors the fixed JSON contract requested from the model.
type wireInfo struct {
	Monday    DayHours `json:"monday"`
	Tuesday   DayHours `json:"tuesday"`
	Wednesday DayHours `json:"wednesday"`
	Thursday  DayHours `json:"thursday"`
	Friday    DayHours `json:"friday"`
	Saturday  DayHours `json:"saturday"`
	Sunday    DayHours `json:"sunday"`

	Phone           string  `json:"phone"`
	Email           string  `json:"email"`
	Website         string  `json:"website"`
	RegistrationURL string  `json:"registration_url"`
	Confidence      float64 `json:"confidence"`
	LastChecked     string  `json:"last_checked"`
}

// parseModelJSON turns raw model output into an Info. It tolerates markdown
// fences and surrounding prose by isolating the outermost JSON object, then
// clamps fields into their invariants.
func parseModelJSON(raw string, now time.Time) (*Info, error) {
	payload, err := isolateJSON(raw)
	if err != nil {
		return nil, err
	}

	var w wireInfo
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	info := &Info{
		Monday:          normalizeDay(w.Monday),
		Tuesday:         normalizeDay(w.Tuesday),
		Wednesday:       normalizeDay(w.Wednesday),
		Thursday:        normalizeDay(w.Thursday),
		Friday:          normalizeDay(w.Friday),
		Saturday:        normalizeDay(w.Saturday),
		Sunday:          normalizeDay(w.Sunday),
		Phone:           strings.TrimSpace(w.Phone),
		Email:           strings.TrimSpace(w.Email),
		Website:         strings.TrimSpace(w.Website),
		RegistrationURL: strings.TrimSpace(w.RegistrationURL),
		Confidence:      clamp01(w.Confidence),
		LastChecked:     now,
	}
	if ts, err := time.Parse(time.RFC3339, w.LastChecked); err == nil && !ts.IsZero() {
		info.LastChecked = ts
	}
	return info, nil
}

// isolateJSON strips markdown fences and surrounding prose, returning the
// outermost {...} block.
func isolateJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return s[start : end+1], nil
}

// normalizeDay enforces the day invariant: a closed day carries no ranges,
// and a day with neither ranges nor closed flag is closed.
func normalizeDay(d DayHours) DayHours {
	if d.Closed {
		return DayHours{Closed: true}
	}
	d.Morning = strings.TrimSpace(d.Morning)
	d.Afternoon = strings.TrimSpace(d.Afternoon)
	if d.Morning == "" && d.Afternoon == "" {
		return DayHours{Closed: true}
	}
	return d
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
