package dictionary

import (
	"sort"
	"strings"

	"github.com/japaniel/termbank/pkg/kana"
)

// Lexicon indexes JMdict entries by every kanji and kana form. It is read-only
// after construction and safe for concurrent lookups.
type Lexicon struct {
	// Key: string (Kanji or Kana), Value: List of matching JMdictEntry
	index map[string][]JMdictEntry
	size  int
}

// NewLexicon builds an in-memory index of the provided dictionary.
func NewLexicon(entries []JMdictEntry) *Lexicon {
	idx := make(map[string][]JMdictEntry)
	for _, e := range entries {
		for _, k := range e.Kanji {
			idx[k.Text] = append(idx[k.Text], e)
		}
		for _, k := range e.Kana {
			// Avoid double-indexing entries whose kana form equals a kanji form.
			if containsEntry(idx[k.Text], e.Id) {
				continue
			}
			idx[k.Text] = append(idx[k.Text], e)
		}
	}
	return &Lexicon{index: idx, size: len(entries)}
}

// LoadLexicon reads a jmdict-simplified file and indexes it.
func LoadLexicon(path string) (*Lexicon, error) {
	entries, err := LoadJMdictSimplified(path)
	if err != nil {
		return nil, err
	}
	return NewLexicon(entries), nil
}

func containsEntry(entries []JMdictEntry, id string) bool {
	for _, e := range entries {
		if e.Id == id {
			return true
		}
	}
	return false
}

// Len returns the number of entries indexed.
func (lx *Lexicon) Len() int {
	if lx == nil {
		return 0
	}
	return lx.size
}

// Lookup finds entries written as word. When reading is non-empty only entries
// carrying that reading (compared as hiragana) are returned. Results are
// sorted by entry id.
func (lx *Lexicon) Lookup(word, reading string) []JMdictEntry {
	if lx == nil || word == "" {
		return nil
	}
	var results []JMdictEntry
	for _, entry := range lx.index[word] {
		if isMatch(entry, word, reading) {
			results = append(results, entry)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Id < results[j].Id
	})
	return results
}

func isMatch(entry JMdictEntry, word, reading string) bool {
	hasText := false
	for _, k := range entry.Kanji {
		if k.Text == word {
			hasText = true
			break
		}
	}
	for _, k := range entry.Kana {
		if k.Text == word {
			hasText = true
			break
		}
	}
	if !hasText {
		return false
	}
	if reading == "" {
		return true
	}

	normalized := kana.ToHiragana(reading)
	for _, k := range entry.Kana {
		if kana.ToHiragana(k.Text) == normalized {
			return true
		}
	}
	return false
}

// Readings returns the distinct katakana readings of every entry written as
// term, honouring readings restricted to specific kanji forms.
func (lx *Lexicon) Readings(term string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range lx.Lookup(term, "") {
		for _, k := range e.Kana {
			if !appliesTo(k, term) {
				continue
			}
			r := kana.ToKatakana(kana.CleanReading(k.Text))
			if r == "" || seen[r] {
				continue
			}
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

func appliesTo(k JMdictElement, term string) bool {
	if len(k.AppliesToKanji) == 0 || kana.AllKana(term) {
		return true
	}
	for _, a := range k.AppliesToKanji {
		if a == "*" || a == term {
			return true
		}
	}
	return false
}

// Tags returns the info tag (misc markers such as "uk") and the deinflection
// rule tag for term. Both are empty when the term is unknown.
func (lx *Lexicon) Tags(term string) (infoTag, posTag string) {
	matches := lx.Lookup(term, "")
	if len(matches) == 0 {
		return "", ""
	}
	var misc, pos []string
	for _, s := range matches[0].Sense {
		misc = appendUnique(misc, s.Misc...)
		pos = appendUnique(pos, s.PartOfSpeech...)
	}
	return strings.Join(misc, " "), RuleTags(pos)
}

// RuleTags maps JMdict part-of-speech codes onto the deinflection rule
// identifiers understood by the dictionary viewer (v1, v5, vk, vs, vz, adj-i).
func RuleTags(pos []string) string {
	var rules []string
	for _, p := range pos {
		var rule string
		switch {
		case p == "v1" || p == "v1-s":
			rule = "v1"
		case strings.HasPrefix(p, "v5"):
			rule = "v5"
		case p == "vk":
			rule = "vk"
		case p == "vs" || p == "vs-i" || p == "vs-s":
			rule = "vs"
		case p == "vz":
			rule = "vz"
		case p == "adj-i" || p == "adj-ix":
			rule = "adj-i"
		default:
			continue
		}
		rules = appendUnique(rules, rule)
	}
	return strings.Join(rules, " ")
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range list {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}
