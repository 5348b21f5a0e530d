// CLAUDE:SUMMARY Diacritic normalization for Swiss place names: lowercase, ä→ae/ö→oe/ü→ue/ß→ss, accent folding, trim.
package dataset

import "strings"

var umlautReplacer = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss",
	// French/Italian accents occur in Romandie and Ticino names.
	"à", "a", "â", "a", "é", "e", "è", "e", "ê", "e", "ë", "e",
	"î", "i", "ï", "i", "ô", "o", "û", "u", "ù", "u", "ç", "c",
)

// Normalize lowercases s, transliterates German umlauts to their two-letter
// forms (ä→ae, not a — the Swiss spelling convention), folds the accents
// common in Romandie/Ticino names, collapses inner whitespace, and trims.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = umlautReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
