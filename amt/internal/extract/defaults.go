// CLAUDE:SUMMARY Static default record: generic weekday counter hours, standard document list, conservative confidence.
package extract

import "time"

const defaultFees = "CHF 20–50 je nach Gemeinde / selon la commune"

func defaultRequiredDocuments() []string {
	return []string{
		"Pass oder Identitätskarte",
		"Mietvertrag oder Wohnsitzbestätigung",
		"Familienbüchlein (falls zutreffend)",
		"Krankenkassennachweis",
	}
}

// DefaultInfo is the static record substituted when extraction fails:
// generic Swiss counter hours, the standard document list, and no contact
// details. Confidence is set by the caller.
func DefaultInfo(website string, now time.Time) *Info {
	weekday := DayHours{Morning: "08:00-11:30", Afternoon: "14:00-17:00"}
	closed := DayHours{Closed: true}
	return &Info{
		Monday:            weekday,
		Tuesday:           weekday,
		Wednesday:         weekday,
		Thursday:          weekday,
		Friday:            DayHours{Morning: "08:00-11:30", Afternoon: "14:00-16:00"},
		Saturday:          closed,
		Sunday:            closed,
		Website:           website,
		RequiredDocuments: defaultRequiredDocuments(),
		Fees:              defaultFees,
		SpecialNotices: []string{
			"Anmeldung innert 14 Tagen nach Zuzug erforderlich",
		},
		LastChecked: now,
	}
}
