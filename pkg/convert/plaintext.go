package convert

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/japaniel/termbank/pkg/markup"
	"github.com/japaniel/termbank/pkg/segment"
)

var pageURL, _ = url.Parse("file:///page.html")

// PlainText extracts the readable text of a page as trimmed, non-empty
// lines, for formats whose entries carry unstructured glossaries. Furigana
// is removed first so readings are not run into the words they annotate.
func PlainText(page []byte) []string {
	cleaned := segment.SanitizeRuby(page)

	var text string
	if article, err := readability.FromReader(bytes.NewReader(cleaned), pageURL); err == nil {
		text = article.TextContent
	}
	if strings.TrimSpace(text) == "" {
		// Pages too short for readability to score.
		root, err := markup.Parse(bytes.NewReader(cleaned))
		if err != nil {
			return nil
		}
		text = blockText(root)
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "br": true, "tr": true,
	"dd": true, "dt": true, "h1": true, "h2": true, "h3": true,
	"section": true, "body": true, "head": true,
}

// blockText renders the text of root with a line break after block
// elements and after every element that contains other elements.
func blockText(root *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode, html.DocumentNode:
		default:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && (blockTags[n.Data] || len(markup.Elements(n)) > 0) {
			b.WriteByte('\n')
		}
	}
	walk(root)
	return b.String()
}
