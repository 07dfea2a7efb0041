// internal/browser/sanitize.go
package browser

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// strippedTags are removed wholesale from snapshots before the markup is
// handed to the planner. Scripts, styles, and graphics carry no information
// the decision oracle can act on and dominate the page's byte count.
var strippedTags = map[string]bool{
	"script": true,
	"style":  true,
	"meta":   true,
	"svg":    true,
}

// SanitizeHTML returns the markup with script/style/meta/svg subtrees
// removed. The function is pure; a parse failure yields the empty string.
func SanitizeHTML(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	stripNodes(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return ""
	}
	return buf.String()
}

func stripNodes(n *html.Node) {
	var next *html.Node
	for child := n.FirstChild; child != nil; child = next {
		next = child.NextSibling
		if child.Type == html.ElementNode && strippedTags[strings.ToLower(child.Data)] {
			n.RemoveChild(child)
			continue
		}
		stripNodes(child)
	}
}
