package policy

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/japaniel/termbank/pkg/dictionary"
	"github.com/japaniel/termbank/pkg/kana"
	"github.com/japaniel/termbank/pkg/markup"
	"github.com/japaniel/termbank/pkg/segment"
)

// Segmenter tokenizes text. *segment.Analyzer satisfies it.
type Segmenter interface {
	Analyze(text string) []segment.Token
}

// SegmenterRules derives a deinflection rule from the conjugation class of
// the term's final token, e.g. "v5" for 預かる and "vs" for 勉強する.
func SegmenterRules(seg Segmenter, term string) string {
	if seg == nil || term == "" {
		return ""
	}
	tokens := seg.Analyze(term)
	if len(tokens) == 0 {
		return ""
	}
	last := tokens[len(tokens)-1]
	conj := last.Conjugation
	switch {
	case last.PrimaryPOS == "形容詞":
		return "adj-i"
	case last.PrimaryPOS != "動詞":
		return ""
	case strings.HasPrefix(conj, "五段"):
		return "v5"
	case strings.HasPrefix(conj, "一段"):
		return "v1"
	case strings.Contains(conj, "ズル"):
		return "vz"
	case strings.HasPrefix(conj, "サ変"):
		return "vs"
	case strings.HasPrefix(conj, "カ変"):
		return "vk"
	}
	return ""
}

// LexiconPOS reads tags from the JMdict lexicon, falling back to the
// segmenter for the rule tag.
type LexiconPOS struct {
	Lexicon   *dictionary.Lexicon
	Segmenter Segmenter
}

func (p LexiconPOS) FromTerm(term string) (infoTag, posTag string) {
	if p.Lexicon != nil {
		infoTag, posTag = p.Lexicon.Tags(term)
	}
	if posTag == "" {
		posTag = SegmenterRules(p.Segmenter, term)
	}
	return infoTag, posTag
}

func (p LexiconPOS) FromMarkup(_ *html.Node, term, _ string) (infoTag, posTag string) {
	return p.FromTerm(term)
}

// LabelPOS parses grammatical labels written as 〘...〙 links inside Section,
// e.g. 〘名〙 or 〘自五〙, and falls back to the lexicon when none are found.
type LabelPOS struct {
	LexiconPOS
	Section string
}

var basePOS = map[string]string{
	"名":       "n",
	"代名":      "pn",
	"固有名詞":    "n-pr",
	"形動":      "adj-na",
	"形シク":     "adj-shiku",
	"形ク":      "adj-ku",
	"形口":      "adj-i",
	"形動タリ":    "adj-t",
	"形動ナリ・タリ": "adj-nari adj-t",
	"連体":      "adj-pn",
	"副":       "adv",
	"接続":      "conj",
	"感動":      "int",
	"格助":      "prt",
	"副助":      "prt",
	"係助":      "prt",
	"接助":      "prt",
	"終助":      "prt",
	"助動":      "aux",
	"接尾":      "suf",
	"連語":      "exp",
	"枕":       "exp",
}

// Checked in order; several may apply to one label.
var labelMarkers = []struct{ marker, tag string }{
	{"自", "vi"},
	{"他", "vt"},
	{"下一", "v1"},
	{"カ変", "vk"},
	{"サ変", "vs"},
	{"ナ変", "vn"},
	{"ラ変", "vr"},
}

var rowConsonant = map[rune]string{
	'カ': "k", 'ハ': "h", 'サ': "s", 'ヤ': "y",
	'ダ': "d", 'ラ': "r", 'マ': "m", 'ナ': "n",
	'ガ': "g", 'バ': "b", 'タ': "t", 'ワ': "u",
}

func (p LabelPOS) FromMarkup(root *html.Node, term, reading string) (infoTag, posTag string) {
	if tags := p.labels(root, reading); len(tags) > 0 {
		return "", strings.Join(tags, " ")
	}
	_, posTag = p.FromTerm(term)
	return "", posTag
}

func (p LabelPOS) labels(root *html.Node, reading string) []string {
	section := markup.Find(root, p.Section)
	if section == nil {
		return nil
	}
	var tags []string
	add := func(t string) {
		if t != "" && !contains(tags, t) {
			tags = append(tags, t)
		}
	}
	for _, a := range markup.FindAll(section, "a") {
		text := markup.Text(a)
		if !strings.ContainsAny(text, "〘〙") {
			continue
		}
		label := kana.CleanHeadword(strings.NewReplacer("〘", "", "〙", "").Replace(text))

		if mapped, ok := basePOS[label]; ok {
			add(mapped)
		} else {
			for _, t := range verbTags(label, reading) {
				add(t)
			}
		}
		for _, m := range labelMarkers {
			if strings.Contains(label, m.marker) {
				add(m.tag)
			}
		}
	}
	return tags
}

func verbTags(label, reading string) []string {
	var tags []string
	switch {
	case strings.HasPrefix(label, "自"):
		tags = append(tags, "vi")
	case strings.HasPrefix(label, "他"):
		tags = append(tags, "vt")
	}

	switch {
	case strings.Contains(label, "下一"), strings.Contains(label, "上一"):
		tags = append(tags, "v1")
	case strings.Contains(label, "下二"):
		tags = append(tags, nidan(label, "s"))
	case strings.Contains(label, "上二"):
		tags = append(tags, nidan(label, "k"))
	}

	if strings.Contains(label, "四") {
		tags = append(tags, "v4"+rowBefore(label, '四'))
	}
	if strings.Contains(label, "五") {
		tags = append(tags, godan(label, reading))
	}

	switch {
	case strings.Contains(label, "カ変"):
		tags = append(tags, "vk")
	case strings.Contains(label, "サ変"):
		tags = append(tags, "vs")
	case strings.Contains(label, "ラ変"):
		tags = append(tags, "vr")
	case strings.Contains(label, "ナ変"):
		tags = append(tags, "vn")
	}
	return tags
}

func nidan(label, class string) string {
	var row []rune
	for _, r := range label {
		if kana.IsKatakana(r) {
			row = append(row, r)
		}
	}
	if len(row) == 1 {
		if c, ok := rowConsonant[row[0]]; ok {
			return "v2" + c + "-" + class
		}
	}
	return "v2-" + class
}

// rowBefore returns the consonant of the first katakana that precedes a
// later occurrence of marker, or "".
func rowBefore(label string, marker rune) string {
	runes := []rune(label)
	last := -1
	for i, r := range runes {
		if r == marker {
			last = i
		}
	}
	for i := 0; i < last; i++ {
		if kana.IsKatakana(runes[i]) {
			return rowConsonant[runes[i]]
		}
	}
	return ""
}

func godan(label, reading string) string {
	r := kana.ToHiragana(reading)
	switch {
	case strings.HasSuffix(r, "ある") || strings.HasSuffix(r, "有る"):
		return "v5aru"
	case strings.HasSuffix(r, "いく") || strings.HasSuffix(r, "ゆく") ||
		strings.HasSuffix(r, "行く") || strings.HasSuffix(r, "逝く"):
		return "v5k-s"
	case strings.HasSuffix(r, "うる"):
		return "v5uru"
	}
	return "v5" + rowBefore(label, '五')
}
