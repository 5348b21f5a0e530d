// CLAUDE:SUMMARY Heuristic relevance scoring of candidate pages: title/h1 keywords, body density, path, JSON-LD, meta description.
package discover

import (
	stdhtml "html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Weights are the additive scoring constants. They encode deliberately tuned
// behavior; change them via Config, not here.
type Weights struct {
	NameInText     float64 // authority name appears in visible text
	KeywordTitleH1 float64 // registration keyword in <title> or first <h1>, counted once
	KeywordEach    float64 // per keyword occurrence in stripped body text
	PathMatch      float64 // URL path contains a registration path fragment
	JSONLD         float64 // page carries JSON-LD structured data
	JSONLDService  float64 // extra when JSON-LD mentions service/contactpoint
	MetaDesc       float64 // meta description contains a registration keyword
}

// DefaultWeights returns the tuned scoring constants.
func DefaultWeights() Weights {
	return Weights{
		NameInText:     0.15,
		KeywordTitleH1: 0.25,
		KeywordEach:    0.05,
		PathMatch:      0.2,
		JSONLD:         0.15,
		JSONLDService:  0.1,
		MetaDesc:       0.1,
	}
}

// pageFacts is everything scoring needs from one parsed page.
type pageFacts struct {
	title       string
	firstH1     string
	metaDesc    string
	bodyText    string // markup stripped, entities unescaped
	hasJSONLD   bool
	jsonLDBlobs string // concatenated JSON-LD script bodies, lowercased
}

var stripPolicy = bluemonday.StrictPolicy()

// analyzePage parses HTML and collects the scoring signals in one pass.
func analyzePage(body []byte) *pageFacts {
	f := &pageFacts{}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err == nil {
		var walk func(n *html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode {
				switch n.DataAtom {
				case atom.Title:
					if f.title == "" {
						f.title = nodeText(n)
					}
				case atom.H1:
					if f.firstH1 == "" {
						f.firstH1 = nodeText(n)
					}
				case atom.Meta:
					if attrVal(n, "name") == "description" && f.metaDesc == "" {
						f.metaDesc = attrVal(n, "content")
					}
				case atom.Script:
					if strings.EqualFold(attrVal(n, "type"), "application/ld+json") {
						f.hasJSONLD = true
						f.jsonLDBlobs += strings.ToLower(nodeText(n)) + "\n"
					}
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(doc)
	}

	// Visible body text: sanitize away all markup, then unescape entities.
	f.bodyText = stdhtml.UnescapeString(stripPolicy.Sanitize(string(body)))
	return f
}

// scorePage computes the additive relevance score for a fetched page,
// capped at 1.0.
func scorePage(pageURL string, body []byte, authorityName string, w Weights) float64 {
	f := analyzePage(body)
	var score float64

	lowerBody := strings.ToLower(f.bodyText)
	if authorityName != "" && strings.Contains(lowerBody, strings.ToLower(authorityName)) {
		score += w.NameInText
	}

	if containsKeyword(f.title) || containsKeyword(f.firstH1) {
		score += w.KeywordTitleH1
	}

	score += float64(countKeywords(f.bodyText)) * w.KeywordEach

	if pathMatches(pageURL) {
		score += w.PathMatch
	}

	if f.hasJSONLD {
		score += w.JSONLD
		if strings.Contains(f.jsonLDBlobs, "service") || strings.Contains(f.jsonLDBlobs, "contactpoint") {
			score += w.JSONLDService
		}
	}

	if containsKeyword(f.metaDesc) {
		score += w.MetaDesc
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
