// CLAUDE:SUMMARY Multilingual (DE/FR/IT/EN) registration keyword and URL-path allow-lists for candidate filtering.
package discover

import "strings"

// registrationKeywords are matched case-insensitively against page text,
// titles, and meta descriptions. Covers the four common languages of Swiss
// municipal sites; accented terms carry an ASCII twin because municipal CMSes
// are inconsistent about encoding.
var registrationKeywords = []string{
	// German
	"anmeldung", "anmelden", "abmeldung", "zuzug", "wegzug", "umzug",
	"einwohner", "einwohnerkontrolle", "einwohnerdienste", "meldewesen",
	"wohnsitz", "niederlassung",
	// French
	"inscription", "habitants", "contrôle des habitants", "controle des habitants",
	"arrivée", "arrivee", "déménagement", "demenagement", "annonce",
	// Italian
	"iscrizione", "anagrafe", "abitanti", "residenti", "notifica di arrivo",
	"cambio di residenza",
	// English
	"registration", "residents", "moving in", "relocation", "register",
}

// registrationPaths are URL path fragments that mark likely registration
// pages even before fetching them.
var registrationPaths = []string{
	"/anmeldung", "/anmelden", "/abmeldung", "/zuzug", "/umzug",
	"/einwohner", "/einwohnerkontrolle", "/einwohnerdienste", "/meldewesen",
	"/inscription", "/habitants", "/controle-des-habitants", "/arrivee",
	"/demenagement",
	"/iscrizione", "/anagrafe", "/residenti",
	"/registration", "/residents", "/moving", "/relocation",
	"/verwaltung", "/dienstleistungen", "/services", "/online-schalter",
}

// matchesAllowList reports whether a URL's lowercased form contains a
// registration keyword or path fragment. Used to filter sitemap entries and
// homepage anchors before spending a fetch on them.
func matchesAllowList(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, p := range registrationPaths {
		if strings.Contains(lower, p) {
			return true
		}
	}
	for _, k := range registrationKeywords {
		if strings.Contains(k, " ") {
			continue // multi-word terms don't appear in URLs
		}
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// pathMatches reports whether the URL path contains a known registration
// path fragment (the +0.2 scoring signal).
func pathMatches(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, p := range registrationPaths {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// containsKeyword reports whether lowercased text contains any registration
// keyword.
func containsKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range registrationKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// countKeywords counts total occurrences of all registration keywords in
// lowercased text.
func countKeywords(text string) int {
	lower := strings.ToLower(text)
	var n int
	for _, k := range registrationKeywords {
		n += strings.Count(lower, k)
	}
	return n
}
