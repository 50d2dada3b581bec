// Package resolve pairs the orthographic and phonetic index keys of a page
// into headword/reading combinations.
package resolve

import (
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/japaniel/termbank/pkg/kana"
	"github.com/japaniel/termbank/pkg/kanjidic"
	"github.com/japaniel/termbank/pkg/segment"
)

// Pair is one headword/reading combination. At least one side is non-empty.
type Pair struct {
	Orthographic string
	Phonetic     string
}

// Segmenter tokenizes text. *segment.Analyzer satisfies it.
type Segmenter interface {
	AnalyzeMode(text string, mode segment.Mode) []segment.Token
}

// exemptKana may appear in a headword without occurring in its reading
// (雑司ケ谷 is read ゾウシガヤ).
const exemptKana = 'ケ'

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for per-candidate debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// Resolver is stateless apart from its collaborators and safe for concurrent
// use when they are.
type Resolver struct {
	seg    Segmenter
	lookup kanjidic.Lookup
	log    zerolog.Logger
}

// New builds a Resolver.
func New(seg Segmenter, lookup kanjidic.Lookup, opts ...Option) *Resolver {
	r := &Resolver{seg: seg, lookup: lookup, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the deduplicated headword/reading pairs supported by the
// candidates, in first-seen order.
//
// With only one kind of candidate every candidate stands alone. Otherwise the
// orthographic forms with the most ideographs are each matched against the
// phonetic forms; a form whose readings are all rejected is returned without
// a reading so that no headword is lost.
func (r *Resolver) Resolve(orthographic, phonetic []string) []Pair {
	var pairs []Pair
	switch {
	case len(orthographic) == 0 && len(phonetic) == 0:
		return nil
	case len(orthographic) == 0:
		for _, p := range phonetic {
			pairs = append(pairs, Pair{Phonetic: p})
		}
		return dedupe(pairs)
	case len(phonetic) == 0:
		for _, o := range orthographic {
			pairs = append(pairs, Pair{Orthographic: o})
		}
		return dedupe(pairs)
	}

	best := bestForms(FilterSubstrings(orthographic), kana.CountKanji)
	for _, form := range best {
		readings := r.matchReadings(form, phonetic)
		if len(readings) == 0 {
			r.log.Debug().Str("form", form).Strs("readings", phonetic).Msg("no reading cleared the threshold")
			pairs = append(pairs, Pair{Orthographic: form})
			continue
		}
		for _, reading := range readings {
			pairs = append(pairs, Pair{Orthographic: form, Phonetic: reading})
		}
	}
	return dedupe(pairs)
}

type scored struct {
	reading string
	score   float64
}

// matchReadings returns the phonetic candidates that fit form, best first in
// input order. Comparisons run on katakana-folded copies so hiragana and
// katakana keys align alike.
func (r *Resolver) matchReadings(form string, phonetic []string) []string {
	filtered := FilterSubstrings(phonetic)
	if len(filtered) == 1 {
		return filtered
	}

	folded := kana.ToKatakana(form)
	formKana := distinctKana(folded)
	whole := r.wholeReading(form)

	var candidates []scored
	for _, reading := range filtered {
		target := kana.ToKatakana(reading)
		if !kanaPresent(formKana, target) {
			continue
		}

		score := 0.0
		if whole != "" && whole == target {
			score += float64(utf8.RuneCountInString(target) * 5)
		}
		score += r.alignment(form, target)

		runes := []rune(folded)
		if len(runes) > 0 && kana.IsKana(runes[len(runes)-1]) {
			score += float64(kana.LongestCommonSuffix(target, folded) * 10)
		}
		if len(runes) > 0 && kana.IsKana(runes[0]) {
			score += float64(kana.LongestCommonPrefix(target, folded) * 10)
		}

		overlap := 0
		for _, c := range formKana {
			if strings.ContainsRune(target, c) {
				overlap++
			}
		}
		score += float64(overlap * 5)

		candidates = append(candidates, scored{reading: reading, score: score})
	}
	if len(candidates) == 0 {
		return nil
	}

	max := candidates[0].score
	for _, c := range candidates[1:] {
		if c.score > max {
			max = c.score
		}
	}
	threshold := max * thresholdRatio(max)

	var out []string
	for _, c := range candidates {
		r.log.Debug().Str("form", form).Str("reading", c.reading).Float64("score", c.score).Float64("threshold", threshold).Send()
		if c.score >= threshold {
			out = append(out, c.reading)
		}
	}
	return out
}

// thresholdRatio is the fraction of the best score a reading must reach.
// Low scores are noisier, so they demand closer agreement.
func thresholdRatio(max float64) float64 {
	switch {
	case max >= 100:
		return 0.75
	case max >= 25:
		return 0.7
	case max >= 10:
		return 0.8
	default:
		return 0.9
	}
}

func (r *Resolver) wholeReading(form string) string {
	var b strings.Builder
	for _, tok := range r.seg.AnalyzeMode(form, segment.Whole) {
		b.WriteString(tok.Reading)
	}
	return kana.ToKatakana(b.String())
}

// alignment rewards readings whose substrings match the per-token readings of
// form, preferring matches that do not overlap earlier ones, plus a bonus for
// the share of the reading covered.
func (r *Resolver) alignment(form, target string) float64 {
	tokens := r.seg.AnalyzeMode(form, segment.Split)
	if len(tokens) == 0 {
		return 0
	}

	targetLen := utf8.RuneCountInString(target)
	covered := make(map[int]bool)
	score := 0.0

	for _, tok := range tokens {
		surface := kana.ToKatakana(tok.Surface)

		if kana.AllKana(surface) {
			if start := runeIndex(target, surface); start >= 0 {
				n := utf8.RuneCountInString(surface)
				score += float64(n * 3)
				for i := start; i < start+n; i++ {
					covered[i] = true
				}
			}
			continue
		}

		if r.lookup == nil {
			continue
		}
		on, kun := r.lookup.Readings(tok.Surface)
		best := 0
		var bestSpan []int
		for _, reading := range append(append([]string(nil), on...), kun...) {
			start := runeIndex(target, reading)
			if reading == "" || start < 0 {
				continue
			}
			n := utf8.RuneCountInString(reading)
			match := n * 2
			span := make([]int, 0, n)
			overlaps := false
			for i := start; i < start+n; i++ {
				span = append(span, i)
				if covered[i] {
					overlaps = true
				}
			}
			if !overlaps {
				match += n
			}
			if match > best {
				best = match
				bestSpan = span
			}
		}
		score += float64(best)
		for _, i := range bestSpan {
			covered[i] = true
		}
	}

	if targetLen > 0 {
		score += float64(len(covered)) / float64(targetLen) * 10
	}
	return score
}

// distinctKana returns the kana of s without repeats, in order of appearance.
func distinctKana(s string) []rune {
	var out []rune
	seen := make(map[rune]bool)
	for _, c := range s {
		if kana.IsKana(c) && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// kanaPresent is the necessary condition for a reading: every kana written in
// the headword must occur somewhere in it.
func kanaPresent(formKana []rune, target string) bool {
	for _, c := range formKana {
		if c != exemptKana && !strings.ContainsRune(target, c) {
			return false
		}
	}
	return true
}

// runeIndex is strings.Index measured in runes.
func runeIndex(s, sub string) int {
	i := strings.Index(s, sub)
	if i < 0 {
		return -1
	}
	return utf8.RuneCountInString(s[:i])
}
