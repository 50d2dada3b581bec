// Package content defines the structured-content tree written into term
// banks and validates it against the viewer's element vocabulary.
package content

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var allowedTags = map[string]bool{
	"br": true, "ruby": true, "rt": true, "rp": true,
	"table": true, "thead": true, "tbody": true, "tfoot": true, "tr": true, "td": true, "th": true,
	"span": true, "div": true, "ol": true, "ul": true, "li": true,
	"img": true, "a": true, "details": true, "summary": true,
}

// Void elements carry no content.
var voidTags = map[string]bool{"br": true, "img": true}

// Allowed reports whether tag belongs to the output vocabulary.
func Allowed(tag string) bool {
	return allowedTags[tag]
}

// Node is one element of a structured-content tree.
//
// Content is a string, a []any whose items are strings or *Node, or nil for
// void elements. Use Validate before handing a tree to a sink.
type Node struct {
	Tag     string
	Content any

	ID      string
	Title   string
	Href    string
	Style   map[string]string
	Data    map[string]string
	RowSpan int
	ColSpan int

	// Image fields.
	Path        string
	Background  bool
	Collapsed   bool
	Collapsible bool
}

// Element builds a node with content.
func Element(tag string, content any) *Node {
	return &Node{Tag: tag, Content: content}
}

// Span builds a span carrying data attributes.
func Span(content any, data map[string]string) *Node {
	return &Node{Tag: "span", Content: content, Data: data}
}

// Link builds an anchor.
func Link(content any, href string) *Node {
	return &Node{Tag: "a", Content: content, Href: href}
}

// Image builds an inline, non-collapsible image.
func Image(path string, data map[string]string) *Node {
	return &Node{Tag: "img", Path: path, Data: data}
}

// Validate checks n and every descendant. Errors carry the path to the
// offending node, e.g. "div > content[2] > span".
func Validate(n *Node) error {
	if n == nil {
		return &InvalidContentError{Path: "(root)", Got: "nil"}
	}
	return validate(n, n.Tag)
}

func validate(n *Node, path string) error {
	if !allowedTags[n.Tag] {
		return &UnsupportedElementError{Path: path, Tag: n.Tag}
	}
	if n.Href != "" && n.Tag != "a" {
		return &InvalidAttributeError{Path: path, Tag: n.Tag, Attribute: "href"}
	}
	if n.Path != "" && n.Tag != "img" {
		return &InvalidAttributeError{Path: path, Tag: n.Tag, Attribute: "path"}
	}

	switch c := n.Content.(type) {
	case nil:
		if !voidTags[n.Tag] {
			return &MissingContentError{Path: path, Tag: n.Tag}
		}
	case string:
	case []any:
		for i, child := range c {
			childPath := fmt.Sprintf("%s > content[%d]", path, i)
			switch v := child.(type) {
			case string:
			case *Node:
				if v == nil {
					return &InvalidContentError{Path: childPath, Got: "nil"}
				}
				if err := validate(v, childPath+" > "+v.Tag); err != nil {
					return err
				}
			default:
				return &InvalidContentError{Path: childPath, Got: fmt.Sprintf("%T", child)}
			}
		}
	default:
		return &InvalidContentError{Path: path, Got: fmt.Sprintf("%T", n.Content)}
	}
	return nil
}

type wireNode struct {
	Tag         string            `json:"tag"`
	Content     any               `json:"content,omitempty"`
	ID          string            `json:"id,omitempty"`
	Title       string            `json:"title,omitempty"`
	Href        string            `json:"href,omitempty"`
	Style       map[string]string `json:"style,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
	RowSpan     int               `json:"rowSpan,omitempty"`
	ColSpan     int               `json:"colSpan,omitempty"`
	Path        string            `json:"path,omitempty"`
	Background  *bool             `json:"background,omitempty"`
	Collapsed   *bool             `json:"collapsed,omitempty"`
	Collapsible *bool             `json:"collapsible,omitempty"`
}

// MarshalJSON renders the viewer's structured-content object. Images always
// carry their three display flags.
func (n *Node) MarshalJSON() ([]byte, error) {
	w := wireNode{
		Tag:     n.Tag,
		Content: n.Content,
		ID:      n.ID,
		Title:   n.Title,
		Href:    n.Href,
		Style:   n.Style,
		Data:    n.Data,
		RowSpan: n.RowSpan,
		ColSpan: n.ColSpan,
		Path:    n.Path,
	}
	if n.Tag == "img" {
		w.Background = &n.Background
		w.Collapsed = &n.Collapsed
		w.Collapsible = &n.Collapsible
	}
	return Marshal(w)
}

// Marshal encodes v as compact JSON without escaping &, < and >, which occur
// in link queries and definitions.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
