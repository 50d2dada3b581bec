package resolve

import "strings"

// FilterSubstrings removes every form that is a proper substring of another
// form in the same slice. Order is preserved and the operation is idempotent.
func FilterSubstrings(forms []string) []string {
	out := make([]string, 0, len(forms))
	for _, form := range forms {
		contained := false
		for _, other := range forms {
			if form != other && strings.Contains(other, form) {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, form)
		}
	}
	return out
}

// bestForms keeps the orthographic forms with the highest ideograph count.
// Ties are all kept: each is treated as a distinct headword.
func bestForms(forms []string, countKanji func(string) int) []string {
	max := -1
	scores := make([]int, len(forms))
	for i, f := range forms {
		scores[i] = countKanji(f)
		if scores[i] > max {
			max = scores[i]
		}
	}
	var best []string
	for i, f := range forms {
		if scores[i] == max {
			best = append(best, f)
		}
	}
	return best
}

func dedupe(pairs []Pair) []Pair {
	seen := make(map[Pair]bool, len(pairs))
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
