// CLAUDE:SUMMARY Sitemap retrieval: well-known paths tried in order, <loc> entries parsed tolerantly.
package discover

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// sitemapPaths are tried in order; the first path that fetches and yields
// locations wins.
var sitemapPaths = []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemap-1.xml"}

// parseSitemapLocs extracts every <loc> value from a sitemap or sitemap
// index document. The parser is deliberately tolerant: municipal sitemaps
// are frequently malformed, so it reads token-by-token and keeps whatever
// parsed before an error.
func parseSitemapLocs(data []byte) []string {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	var locs []string
	var inLoc bool
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			inLoc = t.Name.Local == "loc"
		case xml.CharData:
			if inLoc {
				if u := strings.TrimSpace(string(t)); u != "" {
					locs = append(locs, u)
				}
			}
		case xml.EndElement:
			inLoc = false
		}
	}
	return locs
}
