package policy

import (
	"golang.org/x/net/html"

	"github.com/japaniel/termbank/pkg/kana"
	"github.com/japaniel/termbank/pkg/markup"
)

// ScriptNormalization writes keys in the script of the page's context text:
// hiragana when the context is all kanji or has no katakana, katakana when
// it contains any.
type ScriptNormalization struct {
	Tag   string
	Class string
}

func (p ScriptNormalization) Context(root *html.Node) string {
	if p.Tag == "" {
		return ""
	}
	return markup.Text(markup.Find(root, markup.Selector(p.Tag, p.Class)))
}

func (ScriptNormalization) Normalize(keys []string, context string) []string {
	convert := kana.ToHiragana
	if !kana.AllKanji(context) && kana.HasKatakana(context) {
		convert = kana.ToKatakana
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = convert(k)
	}
	return out
}

// IdentityNormalization leaves keys as indexed.
type IdentityNormalization struct{}

func (IdentityNormalization) Context(*html.Node) string { return "" }

func (IdentityNormalization) Normalize(keys []string, _ string) []string {
	return append([]string(nil), keys...)
}
