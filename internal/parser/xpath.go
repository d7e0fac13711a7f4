package parser

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// xpathText returns the whitespace-collapsed inner text of the first node
// matching expr with non-empty text, or "" when nothing matches.
func xpathText(doc *html.Node, expr string) string {
	if doc == nil {
		return ""
	}
	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		return ""
	}
	for _, node := range nodes {
		if val := collapse(htmlquery.InnerText(node)); val != "" {
			return val
		}
	}
	return ""
}

// xpathAttr returns the attribute of the first node matching expr.
func xpathAttr(doc *html.Node, expr, attr string) string {
	if doc == nil {
		return ""
	}
	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		return ""
	}
	for _, node := range nodes {
		if val := strings.TrimSpace(htmlquery.SelectAttr(node, attr)); val != "" {
			return val
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
