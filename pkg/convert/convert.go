// Package convert turns source dictionary markup into structured-content
// trees.
package convert

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/japaniel/termbank/pkg/content"
	"github.com/japaniel/termbank/pkg/markup"
	"github.com/japaniel/termbank/pkg/policy"
)

// ErrNoContent is returned by Entry when a top-level element converts to
// nothing.
var ErrNoContent = errors.New("element has no representable content")

// Options configures a Converter.
type Options struct {
	// TagMap maps source elements to output tags. Keys are tried in order
	// "tag.class" (for each class), "parent>tag", then "tag".
	TagMap map[string]string
	// Ignored lists elements dropped with their subtrees, keyed by tag. A
	// non-empty class list restricts the match to those classes.
	Ignored map[string][]string
	// ExpressionElement is the headword element suppressed on request.
	ExpressionElement string
	// ParseAllLinks sends link elements without an href to the link policy
	// as well. Otherwise they render as plain spans.
	ParseAllLinks bool

	Link  policy.LinkPolicy
	Image policy.ImagePolicy
}

// Converter is immutable and safe for concurrent use when its policies are.
type Converter struct {
	opts Options
}

// New builds a Converter. Missing policies fall back to the defaults.
func New(opts Options) *Converter {
	if opts.Link == nil {
		opts.Link = policy.DefaultLink{}
	}
	if opts.Image == nil {
		opts.Image = policy.DefaultImage{}
	}
	return &Converter{opts: opts}
}

// Convert converts n. The result is a string for text, a validated
// *content.Node for elements, or nil when n has nothing to show. With
// suppress set, expression elements are left out so the caller can supply
// the headword separately.
func (c *Converter) Convert(n *html.Node, suppress bool) (any, error) {
	return c.convert(n, suppress, 0)
}

// Entry converts the top-level elements of root. Ignored and suppressed
// elements are skipped, as are wrappers left empty by suppression; any other
// element without content fails the entry.
func (c *Converter) Entry(root *html.Node, suppress bool) ([]*content.Node, error) {
	var out []*content.Node
	for _, el := range markup.Elements(root) {
		if c.ignored(el) || (suppress && c.isExpression(el)) {
			continue
		}
		v, err := c.convert(el, suppress, 0)
		if err != nil {
			return nil, err
		}
		node, ok := v.(*content.Node)
		if !ok || node == nil {
			if suppress && c.hasExpression(el) {
				continue
			}
			return nil, fmt.Errorf("%w: <%s>", ErrNoContent, el.Data)
		}
		out = append(out, node)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: <%s> is empty", ErrNoContent, root.Data)
	}
	return out, nil
}

func (c *Converter) convert(n *html.Node, suppress bool, depth int) (any, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Type {
	case html.TextNode:
		// Indentation between elements.
		if strings.TrimSpace(n.Data) == "" && strings.Contains(n.Data, "\n") {
			return nil, nil
		}
		return n.Data, nil
	case html.ElementNode:
	default:
		return nil, nil
	}

	if c.ignored(n) || (suppress && c.isExpression(n)) {
		return nil, nil
	}

	classes := markup.ClassList(n)
	tag := c.target(n, classes, depth)

	children, err := c.children(n, suppress, depth)
	if err != nil {
		return nil, err
	}
	data := dataFor(n, classes)

	var node *content.Node
	switch {
	case tag == "a" && (c.opts.ParseAllLinks || markup.Attr(n, "href") != ""):
		node = c.opts.Link.Link(n, children, data, classes)
	case tag == "a":
		if len(children) == 0 {
			return nil, nil
		}
		node = content.Span(children, data)
	case tag == "img":
		node = c.opts.Image.Image(n, children, data, classes)
	case tag == "br":
		node = &content.Node{Tag: "br", Data: data}
	default:
		if len(children) == 0 {
			return nil, nil
		}
		node = &content.Node{Tag: tag, Content: children, Data: data}
		if tag == "td" || tag == "th" {
			node.RowSpan = intAttr(n, "rowspan")
			node.ColSpan = intAttr(n, "colspan")
		}
	}
	if node == nil {
		return nil, nil
	}
	if err := content.Validate(node); err != nil {
		return nil, fmt.Errorf("<%s>: %w", n.Data, err)
	}
	return node, nil
}

func (c *Converter) children(n *html.Node, suppress bool, depth int) ([]any, error) {
	var out []any
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		v, err := c.convert(ch, suppress, depth+1)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

// target picks the output tag. Unmapped elements keep their name when it is
// part of the output vocabulary and otherwise become blocks at the top level
// and spans below it.
func (c *Converter) target(n *html.Node, classes []string, depth int) string {
	name := n.Data
	for _, class := range classes {
		if t, ok := c.opts.TagMap[name+"."+class]; ok {
			return t
		}
	}
	if p := n.Parent; p != nil && p.Type == html.ElementNode {
		if t, ok := c.opts.TagMap[p.Data+">"+name]; ok {
			return t
		}
	}
	if t, ok := c.opts.TagMap[name]; ok {
		return t
	}
	if content.Allowed(name) {
		return name
	}
	if depth == 0 {
		return "div"
	}
	return "span"
}

func (c *Converter) ignored(n *html.Node) bool {
	classes, ok := c.opts.Ignored[n.Data]
	if !ok {
		return false
	}
	if len(classes) == 0 {
		return true
	}
	for _, class := range classes {
		if markup.HasClass(n, class) {
			return true
		}
	}
	return false
}

func (c *Converter) isExpression(n *html.Node) bool {
	return c.opts.ExpressionElement != "" && strings.EqualFold(n.Data, c.opts.ExpressionElement)
}

func (c *Converter) hasExpression(n *html.Node) bool {
	if c.opts.ExpressionElement == "" {
		return false
	}
	return markup.Find(n, c.opts.ExpressionElement) != nil
}

// dataFor records the source element name and its classes as data keys so
// that stylesheets can target them.
func dataFor(n *html.Node, classes []string) map[string]string {
	data := map[string]string{n.Data: ""}
	for _, class := range classes {
		data[class] = ""
	}
	return data
}

func intAttr(n *html.Node, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(markup.Attr(n, key)))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
