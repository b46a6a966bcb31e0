// Package similarity scores how closely two strings resemble each other.
package similarity

// Score returns the Dice coefficient of the character bigram multisets of a
// and b. Comparison is case sensitive and works on runes. Strings too short
// to have a bigram score 1 when equal and 0 otherwise.
func Score(a, b string) float64 {
	left := bigrams(a)
	right := bigrams(b)
	total := countOf(left) + countOf(right)
	if total == 0 {
		if a == b {
			return 1
		}
		return 0
	}

	shared := 0
	for gram, n := range left {
		if m, ok := right[gram]; ok {
			shared += min(n, m)
		}
	}
	return float64(2*shared) / float64(total)
}

type bigram [2]rune

func bigrams(s string) map[bigram]int {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	out := make(map[bigram]int, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		out[bigram{runes[i], runes[i+1]}]++
	}
	return out
}

func countOf(grams map[bigram]int) int {
	n := 0
	for _, c := range grams {
		n += c
	}
	return n
}
