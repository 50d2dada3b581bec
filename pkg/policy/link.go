package policy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/japaniel/termbank/pkg/content"
	"github.com/japaniel/termbank/pkg/kana"
	"github.com/japaniel/termbank/pkg/markup"
)

// QueryHref is the viewer link that searches for text without wildcards.
func QueryHref(text string) string {
	return "?query=" + text + "&wildcards=off"
}

// linkable reports whether text can be a cross-reference: non-empty and not
// purely numeric.
func linkable(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if !isDigit(r) {
			return true
		}
	}
	return false
}

// isDigit accepts decimal digits of any script and the circled numbers
// ① to ⑳ used for sense numbering.
func isDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= '\u2460' && r <= '\u2473')
}

func linkOrSpan(target string, children []any, data map[string]string) *content.Node {
	if linkable(target) {
		return content.Link(nonNil(children), QueryHref(target))
	}
	return content.Span(nonNil(children), data)
}

// DefaultLink links to the element's own text.
type DefaultLink struct{}

func (DefaultLink) Link(el *html.Node, children []any, data map[string]string, _ []string) *content.Node {
	return linkOrSpan(markup.Text(el), children, data)
}

var bracketPunct = regexp.MustCompile(`[〒〓〈〉《》「」『』【】〔〕〖〗〘〙〚〛〝〞〟()\[\]{}]`)

// TextLink links to the text of the element's direct children, skipping
// children named in Skip (annotations such as readings or notes).
type TextLink struct {
	Skip []string
	// StripBrackets removes bracket punctuation from the collected text.
	StripBrackets bool
	// Class, when set, restricts linking to elements carrying it.
	Class string
}

func (p TextLink) target(el *html.Node) string {
	var parts []string
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if t := strings.TrimSpace(c.Data); t != "" {
				parts = append(parts, t)
			}
		case html.ElementNode:
			if contains(p.Skip, c.Data) {
				continue
			}
			if t := markup.Text(c); t != "" {
				parts = append(parts, t)
			}
		}
	}
	text := strings.Join(parts, "")
	if p.StripBrackets {
		text = strings.TrimSpace(bracketPunct.ReplaceAllString(text, ""))
	}
	return text
}

func (p TextLink) Link(el *html.Node, children []any, data map[string]string, classes []string) *content.Node {
	if p.Class != "" && !contains(classes, p.Class) {
		return content.Span(nonNil(children), data)
	}
	return linkOrSpan(p.target(el), children, data)
}

// RubyLink links to the element's text without furigana. A target listing
// alternatives separated by ・ becomes one link per alternative.
type RubyLink struct{}

func (RubyLink) Link(el *html.Node, children []any, data map[string]string, _ []string) *content.Node {
	target := kana.CleanHeadword(markup.TextWithout(el, "rt", "rp"))
	if !linkable(target) {
		return content.Span(nonNil(children), data)
	}
	if !strings.Contains(target, "・") {
		return content.Link(nonNil(children), QueryHref(target))
	}

	terms := strings.Split(target, "・")
	links := make([]any, 0, 2*len(terms)-1)
	for i, term := range terms {
		links = append(links, content.Link(term, QueryHref(term)))
		if i < len(terms)-1 {
			links = append(links, content.Element("span", "・"))
		}
	}
	return content.Span(links, data)
}

// MapLink turns "map:ll=<lat>,<lng>" hrefs into map links and otherwise
// defers to Next.
type MapLink struct {
	Next LinkPolicy
}

// mapURL converts a map:ll= href, reporting false for anything else.
func mapURL(href string) (string, bool) {
	rest, ok := strings.CutPrefix(href, "map:ll=")
	if !ok {
		return "", false
	}
	coords, _, _ := strings.Cut(rest, "&")
	lat, lng, ok := strings.Cut(coords, ",")
	if !ok || lat == "" || lng == "" {
		return "", false
	}
	return "https://maps.apple.com/?ll=" + lat + "," + lng, true
}

func (p MapLink) Link(el *html.Node, children []any, data map[string]string, classes []string) *content.Node {
	if u, ok := mapURL(markup.Attr(el, "href")); ok {
		return content.Link(nonNil(children), u)
	}
	if p.Next == nil {
		return content.Span(nonNil(children), data)
	}
	return p.Next.Link(el, children, data, classes)
}

// LoadAppendix reads a JSON object mapping appendix page paths to titles.
func LoadAppendix(p string) (map[string]string, error) {
	return loadStringMap(p, "appendix entries")
}

// AppendixLink hands elements named Tag to Next and resolves the hrefs of
// all other link elements that name an appendix page to that page's title.
type AppendixLink struct {
	Entries map[string]string
	Tag     string
	Next    LinkPolicy
}

func (p AppendixLink) Link(el *html.Node, children []any, data map[string]string, classes []string) *content.Node {
	if p.Next != nil && el.Data == p.Tag {
		return p.Next.Link(el, children, data, classes)
	}
	href := strings.Replace(markup.Attr(el, "href"), "index/", "appendix/", 1)
	page, _, _ := strings.Cut(href, "#")
	if title, ok := p.Entries[page]; ok && title != "" {
		return content.Span([]any{content.Link(nonNil(children), QueryHref(title))}, data)
	}
	return content.Span(nonNil(children), data)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
