package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/japaniel/termbank/pkg/content"
	"github.com/japaniel/termbank/pkg/markup"
)

// withImage prepends an image for src to children inside a span.
func withImage(src string, children []any, data map[string]string) *content.Node {
	out := make([]any, 0, len(children)+1)
	out = append(out, content.Image(src, data))
	out = append(out, children...)
	return content.Span(out, data)
}

// DefaultImage emits the element's src, stripped of leading slashes, ahead
// of its children. Elements without a src keep only their children.
type DefaultImage struct{}

func (DefaultImage) Image(el *html.Node, children []any, data map[string]string, _ []string) *content.Node {
	src := strings.TrimLeft(markup.Attr(el, "src"), "/")
	if src == "" {
		return content.Span(nonNil(children), data)
	}
	return withImage(src, children, data)
}

// LoadNameMap reads a JSON object mapping original image file names to
// content-addressed ones.
func LoadNameMap(p string) (map[string]string, error) {
	return loadStringMap(p, "image map")
}

func loadStringMap(p, what string) (map[string]string, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%s %s: %w", what, p, err)
	}
	return m, nil
}

// HashedImage swaps file names for their hashed equivalents. Names missing
// from the map are retried in each Unicode normalization form.
type HashedImage struct {
	Names map[string]string
}

var normForms = []norm.Form{norm.NFC, norm.NFD, norm.NFKC, norm.NFKD}

// Resolve returns src with its file name replaced when the map knows it.
func (p HashedImage) Resolve(src string) string {
	if src == "" {
		return ""
	}
	base := path.Base(src)
	if hashed, ok := p.Names[base]; ok {
		return strings.ReplaceAll(src, base, hashed)
	}
	for _, f := range normForms {
		if hashed, ok := p.Names[f.String(base)]; ok {
			return strings.ReplaceAll(src, base, hashed)
		}
	}
	return src
}

func (p HashedImage) Image(el *html.Node, children []any, data map[string]string, _ []string) *content.Node {
	src := p.Resolve(strings.TrimLeft(markup.Attr(el, "src"), "/"))
	if src == "" {
		return content.Span(nonNil(children), data)
	}
	return withImage(src, children, data)
}

// Gaiji is the textual stand-in for a glyph image.
type Gaiji struct {
	Text  string `json:"text" yaml:"text"`
	Class string `json:"class" yaml:"class"`
}

// LoadGaiji reads a JSON object mapping image file names to replacements.
func LoadGaiji(p string) (map[string]Gaiji, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var m map[string]Gaiji
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("gaiji table %s: %w", p, err)
	}
	return m, nil
}

// GaijiImage replaces known glyph images with text, marking the span with
// the replacement's class. Unknown images render like DefaultImage.
type GaijiImage struct {
	Replacements map[string]Gaiji
}

func (p GaijiImage) Image(el *html.Node, children []any, data map[string]string, classes []string) *content.Node {
	src := strings.TrimLeft(markup.Attr(el, "src"), "/")
	if src == "" {
		return content.Span(nonNil(children), data)
	}
	if g, ok := p.Replacements[path.Base(src)]; ok {
		d := copyData(data)
		if d == nil {
			d = make(map[string]string)
		}
		d[g.Class] = ""
		return content.Span(g.Text, d)
	}
	return withImage(src, children, data)
}

// RewriteImage adapts source image paths to the converted asset set: HEIC
// images become AVIF and audio button icons are dropped.
type RewriteImage struct{}

func (RewriteImage) source(el *html.Node) string {
	src := markup.Attr(el, "src")
	if strings.HasSuffix(strings.ToLower(src), ".heic") {
		src = src[:len(src)-len(".heic")] + ".avif"
	}
	if strings.Contains(src, "Audio.png") {
		return ""
	}
	return src
}

func (p RewriteImage) Image(el *html.Node, children []any, data map[string]string, _ []string) *content.Node {
	src := p.source(el)
	if src == "" {
		return content.Span(nonNil(children), data)
	}
	return withImage(src, children, data)
}

// StrokeOrderImage serves hashed AVIF images from img/ and folds images
// carrying StrokeClass into a collapsible block titled with that class.
type StrokeOrderImage struct {
	Hashed      HashedImage
	StrokeClass string
}

func (p StrokeOrderImage) Image(el *html.Node, children []any, data map[string]string, classes []string) *content.Node {
	src := p.Hashed.Resolve(strings.TrimLeft(markup.Attr(el, "src"), "/"))
	if src == "" {
		return content.Span(nonNil(children), data)
	}
	if strings.Contains(src, "img/") && strings.HasSuffix(src, ".png") {
		src = src[:len(src)-len(".png")] + ".avif"
	}
	src = strings.TrimPrefix(src, "../")
	if strings.HasPrefix(src, "img") {
		src = p.Hashed.Resolve(src)
	}

	if p.StrokeClass != "" && contains(classes, p.StrokeClass) {
		return content.Element("details", []any{
			content.Element("summary", p.StrokeClass),
			content.Image(src, data),
		})
	}
	return withImage(src, children, data)
}
