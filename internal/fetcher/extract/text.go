// Package extract turns HTML documents into normalized visible text.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// hiddenSelector lists elements whose contents never render as text.
const hiddenSelector = "script, style, noscript, template"

// VisibleText parses body as HTML, drops non-content markup and returns the
// remaining text with whitespace runs collapsed to single spaces.
func VisibleText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(hiddenSelector).Remove()

	var sb strings.Builder
	for _, n := range doc.Nodes {
		collectText(&sb, n)
	}
	return NormalizeSpace(sb.String()), nil
}

// NormalizeSpace separates tokens by single spaces and trims the ends.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// collectText writes text nodes separated by spaces so adjacent block
// elements never run together.
func collectText(sb *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(sb, c)
	}
}
