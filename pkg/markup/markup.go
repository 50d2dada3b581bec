// Package markup parses dictionary page markup into html.Node trees and
// offers the small query surface the converter needs.
package markup

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/go-shiori/dom"
	"golang.org/x/net/html"
)

// Elements that never have children when written without a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "source": true, "track": true, "wbr": true,
}

// Parse builds a tree from XML-flavoured page markup. Unlike html.Parse it
// honours self-closing custom tags and inserts no html/head/body wrappers.
// Element names are lowercased. The returned node is a DocumentNode.
func Parse(r io.Reader) (*html.Node, error) {
	doc := &html.Node{Type: html.DocumentNode}
	stack := []*html.Node{doc}
	z := html.NewTokenizer(r)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("markup: %w", err)
			}
			return doc, nil

		case html.TextToken:
			text := string(z.Text())
			if text == "" {
				continue
			}
			parent := stack[len(stack)-1]
			parent.AppendChild(&html.Node{Type: html.TextNode, Data: text})

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			n := &html.Node{
				Type:     html.ElementNode,
				Data:     tok.Data,
				DataAtom: tok.DataAtom,
				Attr:     tok.Attr,
			}
			stack[len(stack)-1].AppendChild(n)
			if tt == html.StartTagToken && !voidElements[tok.Data] {
				stack = append(stack, n)
			}

		case html.EndTagToken:
			tok := z.Token()
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].Data == tok.Data {
					stack = stack[:i]
					break
				}
			}
		}
	}
}

// ParseString is Parse over a string.
func ParseString(s string) (*html.Node, error) {
	return Parse(strings.NewReader(s))
}

var selectors sync.Map // string -> cascadia.Selector

// Compile parses a CSS selector, caching the result.
func Compile(selector string) (cascadia.Selector, error) {
	if s, ok := selectors.Load(selector); ok {
		return s.(cascadia.Selector), nil
	}
	s, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("markup: selector %q: %w", selector, err)
	}
	selectors.Store(selector, s)
	return s, nil
}

// Selector builds a selector for tag, optionally restricted to class.
func Selector(tag, class string) string {
	if class == "" {
		return tag
	}
	return tag + "." + class
}

// Find returns the first node in n's subtree, n included, matching selector.
// Invalid selectors match nothing.
func Find(n *html.Node, selector string) *html.Node {
	if n == nil || selector == "" {
		return nil
	}
	s, err := Compile(selector)
	if err != nil {
		return nil
	}
	return s.MatchFirst(n)
}

// FindAll returns every node in n's subtree, n included, matching selector in
// document order.
func FindAll(n *html.Node, selector string) []*html.Node {
	if n == nil || selector == "" {
		return nil
	}
	s, err := Compile(selector)
	if err != nil {
		return nil
	}
	return s.MatchAll(n)
}

// Text returns the trimmed text content of n.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(dom.TextContent(n))
}

// TextWithout returns the trimmed text of n, leaving out the subtrees of
// elements named in skip (e.g. "rt" to drop furigana).
func TextWithout(n *html.Node, skip ...string) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
			return
		case html.ElementNode:
			for _, s := range skip {
				if c.Data == s {
					return
				}
			}
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// ClassList returns the whitespace-separated classes of n.
func ClassList(n *html.Node) []string {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	return strings.Fields(dom.ClassName(n))
}

// HasClass reports whether n carries class.
func HasClass(n *html.Node, class string) bool {
	for _, c := range ClassList(n) {
		if c == class {
			return true
		}
	}
	return false
}

// Attr returns the value of attribute key, or "".
func Attr(n *html.Node, key string) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return dom.GetAttribute(n, key)
}

// Elements returns the element children of n.
func Elements(n *html.Node) []*html.Node {
	if n == nil {
		return nil
	}
	return dom.Children(n)
}

// IsBlank reports whether n is a text node holding only whitespace.
func IsBlank(n *html.Node) bool {
	return n != nil && n.Type == html.TextNode && strings.TrimSpace(n.Data) == ""
}
