// Package segment wraps the kagome morphological analyzer.
package segment

import (
	"regexp"
	"strings"
	"sync"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"

	"github.com/japaniel/termbank/pkg/kana"
)

// Mode selects how aggressively compounds are split.
type Mode int

const (
	// Whole keeps compounds together (used for full readings).
	Whole Mode = iota
	// Split breaks compounds into their parts (used for kanji/reading alignment).
	Split
)

// Token represents a single analyzed unit of text.
type Token struct {
	Surface       string   // The text as it appears (e.g. "行っ")
	BaseForm      string   // The dictionary form (e.g. "行く")
	Reading       string   // Katakana reading (e.g. "イッ"); empty when unknown
	PartsOfSpeech []string // e.g. ["動詞", "自立", "*", "*"] (Kagome POS labels)
	// PrimaryPOS stores the first (primary) part of speech if available.
	PrimaryPOS string
	// Conjugation is the IPA conjugation type, e.g. "五段・ラ行".
	Conjugation string
}

// Analyzer handles text segmentation. It is safe for concurrent use.
type Analyzer struct {
	t *tokenizer.Tokenizer
}

// NewAnalyzer creates a new tokenizer instance.
func NewAnalyzer() (*Analyzer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Analyzer{t: t}, nil
}

var (
	defaultOnce     sync.Once
	defaultAnalyzer *Analyzer
	defaultErr      error
)

// Default returns a process-wide analyzer, building it on first use. Loading
// the IPA dictionary is expensive, so callers should share this instance.
func Default() (*Analyzer, error) {
	defaultOnce.Do(func() {
		defaultAnalyzer, defaultErr = NewAnalyzer()
	})
	return defaultAnalyzer, defaultErr
}

// Analyze breaks text into tokens in Whole mode.
func (a *Analyzer) Analyze(text string) []Token {
	return a.AnalyzeMode(text, Whole)
}

// AnalyzeMode breaks text into tokens with readings and base forms.
func (a *Analyzer) AnalyzeMode(text string, mode Mode) []Token {
	m := tokenizer.Normal
	if mode == Split {
		m = tokenizer.Search
	}
	tokens := a.t.Analyze(text, m)
	var result []Token

	for _, token := range tokens {
		if token.Class == tokenizer.DUMMY {
			continue
		}
		if strings.TrimSpace(token.Surface) == "" {
			continue
		}

		features := token.Features()

		// Kagome IPA features:
		// 0-3: part of speech and sub-categories
		// 4: conjugation type, 5: conjugation form
		// 6: base form, 7: reading, 8: pronunciation
		base := token.Surface
		if len(features) > 6 && features[6] != "*" {
			base = features[6]
		}

		reading := ""
		if len(features) > 7 && features[7] != "*" {
			reading = features[7]
		} else if kana.AllKana(token.Surface) {
			// Unknown words written in kana read as themselves.
			reading = kana.ToKatakana(token.Surface)
		}

		primaryPOS := ""
		if len(features) > 0 {
			primaryPOS = features[0]
		}
		conjugation := ""
		if len(features) > 4 && features[4] != "*" {
			conjugation = features[4]
		}

		result = append(result, Token{
			Surface:       token.Surface,
			BaseForm:      base,
			Reading:       reading,
			PartsOfSpeech: features,
			PrimaryPOS:    primaryPOS,
			Conjugation:   conjugation,
		})
	}

	return result
}

// Reading returns the concatenated katakana reading of text in Whole mode.
func (a *Analyzer) Reading(text string) string {
	var b strings.Builder
	for _, t := range a.Analyze(text) {
		b.WriteString(t.Reading)
	}
	return b.String()
}

var (
	// (?s) allows dot to match newlines
	// (?i) makes it case-insensitive
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// SanitizeRuby removes ruby text (<rt>...</rt>) and ruby parentheses (<rp>...</rp>)
// from markup so that text extraction does not duplicate furigana
// (e.g. "漢字" becoming "漢字かんじ").
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, []byte{})
	cleaned = reRP.ReplaceAll(cleaned, []byte{})
	return cleaned
}
