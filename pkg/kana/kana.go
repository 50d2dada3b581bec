// Package kana classifies Japanese script and converts between kana forms.
package kana

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Placeholder is the geta mark that some sources use as an index key for
// entries whose headword cannot be typed. It is never a real candidate.
const Placeholder = "〓"

// IsKanji reports whether r is a CJK ideograph (including the iteration mark 々).
func IsKanji(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

// IsHiragana reports whether r is in the hiragana block.
func IsHiragana(r rune) bool {
	return r >= 0x3041 && r <= 0x309F
}

// IsKatakana reports whether r is in the katakana block, prolonged sound mark included.
func IsKatakana(r rune) bool {
	return (r >= 0x30A0 && r <= 0x30FF) || (r >= 0x31F0 && r <= 0x31FF)
}

// IsKana reports whether r is hiragana or katakana.
func IsKana(r rune) bool {
	return IsHiragana(r) || IsKatakana(r)
}

// HasKanji reports whether s contains at least one ideograph.
func HasKanji(s string) bool {
	return strings.IndexFunc(s, IsKanji) >= 0
}

// HasKatakana reports whether s contains at least one katakana character.
func HasKatakana(s string) bool {
	return strings.IndexFunc(s, IsKatakana) >= 0
}

// AllKanji reports whether every rune of s is an ideograph. Empty strings are all-kanji.
func AllKanji(s string) bool {
	for _, r := range s {
		if !IsKanji(r) {
			return false
		}
	}
	return true
}

// AllKana reports whether s is non-empty and consists only of kana.
func AllKana(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !IsKana(r) {
			return false
		}
	}
	return true
}

// CountKanji returns the number of ideographs in s.
func CountKanji(s string) int {
	n := 0
	for _, r := range s {
		if IsKanji(r) {
			n++
		}
	}
	return n
}

// ToHiragana converts Katakana to Hiragana.
func ToHiragana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 0x30A1 && r <= 0x30F6 {
			runes[i] = r - 0x60
		}
	}
	return string(runes)
}

// ToKatakana converts Hiragana to Katakana.
func ToKatakana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 0x3041 && r <= 0x3096 {
			runes[i] = r + 0x60
		}
	}
	return string(runes)
}

// FullWidthDigits widens ASCII digits, e.g. "12" becomes "１２".
func FullWidthDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteString(width.Widen.String(string(r)))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var headwordNoise = strings.NewReplacer(
	"【", "", "】", "", "〔", "", "〕", "", "〖", "", "〗", "",
	"（", "", "）", "", "(", "", ")", "", "［", "", "］", "",
	"‐", "", "－", "", "▲", "", "△", "", "×", "", "▽", "", "◇", "",
	"◆", "", "＝", "", "=", "", "‥", "", "…", "", " ", "", "　", "",
)

// CleanHeadword strips bracket and marker glyphs that dictionaries wrap around headwords.
func CleanHeadword(s string) string {
	return strings.TrimSpace(headwordNoise.Replace(s))
}

var readingNoise = strings.NewReplacer(
	".", "", "-", "", "‐", "", "・", "", "－", "",
	" ", "", "　", "", "(", "", ")", "", "（", "", "）", "",
)

// CleanReading removes okurigana separators and syllable dots from a reading,
// e.g. the KANJIDIC form "あ.げる" becomes "あげる".
func CleanReading(s string) string {
	return strings.TrimSpace(readingNoise.Replace(CleanHeadword(s)))
}

// LongestCommonPrefix returns the length in runes of the shared prefix of a and b.
func LongestCommonPrefix(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n := 0
	for n < len(ra) && n < len(rb) && ra[n] == rb[n] {
		n++
	}
	return n
}

// LongestCommonSuffix returns the length in runes of the shared suffix of a and b.
func LongestCommonSuffix(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n := 0
	for n < len(ra) && n < len(rb) && ra[len(ra)-1-n] == rb[len(rb)-1-n] {
		n++
	}
	return n
}
