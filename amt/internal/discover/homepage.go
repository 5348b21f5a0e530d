// CLAUDE:SUMMARY Homepage anchor extraction: same-domain links, relative→absolute, deduplicated.
package discover

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// extractAnchors returns the absolute URLs of all same-domain anchors in an
// HTML document. Relative hrefs are resolved against base; fragments,
// mailto:/tel: links, and foreign hosts are dropped; duplicates collapse.
func extractAnchors(body []byte, base *url.URL) []string {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var out []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			if href := attrVal(n, "href"); href != "" {
				if abs := resolveSameDomain(href, base); abs != "" && !seen[abs] {
					seen[abs] = true
					out = append(out, abs)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func resolveSameDomain(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "javascript:") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	if !sameHost(abs.Hostname(), base.Hostname()) {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

// sameHost treats www.example.ch and example.ch as the same site.
func sameHost(a, b string) bool {
	return strings.TrimPrefix(strings.ToLower(a), "www.") ==
		strings.TrimPrefix(strings.ToLower(b), "www.")
}
