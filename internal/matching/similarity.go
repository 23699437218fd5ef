package matching

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minWordLen is the shortest word that counts towards similarity.
const minWordLen = 3

// Similarity returns the Jaccard index of the significant word sets of a
// and b, in [0, 1]. Words are lowercased, stripped of surrounding
// punctuation, and dropped when shorter than three characters. It returns
// 0 when either side has no significant words.
func Similarity(a, b string) float64 {
	wa, wb := words(a), words(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	shared := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			shared++
		}
	}
	union := len(wa) + len(wb) - shared
	return float64(shared) / float64(union)
}

func words(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(s)) {
		w := strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if utf8.RuneCountInString(w) < minWordLen {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}
