// Package policy holds the per-format strategies the converter delegates to:
// how links and images are rendered, how index keys are normalized and where
// part-of-speech tags come from.
package policy

import (
	"golang.org/x/net/html"

	"github.com/japaniel/termbank/pkg/content"
)

// LinkPolicy renders a link element. children are the already converted
// children of el, data its accumulated data attributes.
type LinkPolicy interface {
	Link(el *html.Node, children []any, data map[string]string, classes []string) *content.Node
}

// ImagePolicy renders an image element.
type ImagePolicy interface {
	Image(el *html.Node, children []any, data map[string]string, classes []string) *content.Node
}

// NormalizationPolicy chooses the script index keys are written in.
type NormalizationPolicy interface {
	// Context extracts the text that decides the script, usually the headword.
	Context(root *html.Node) string
	Normalize(keys []string, context string) []string
}

// PartOfSpeechPolicy supplies the info and deinflection tags of an entry.
type PartOfSpeechPolicy interface {
	FromTerm(term string) (infoTag, posTag string)
	FromMarkup(root *html.Node, term, reading string) (infoTag, posTag string)
}

// Set bundles the strategies selected for one dictionary format.
type Set struct {
	Link          LinkPolicy
	Image         ImagePolicy
	Normalization NormalizationPolicy
	PartOfSpeech  PartOfSpeechPolicy
}

func nonNil(children []any) []any {
	if children == nil {
		return []any{}
	}
	return children
}

func copyData(data map[string]string) map[string]string {
	if data == nil {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
