package similarity

import "strings"

// Jaccard returns the Jaccard index of the word sets of a and b, in [0,1].
// Both strings are lower-cased and split on whitespace with duplicates
// collapsed. Two empty token sets score 0, not NaN. Deliberately simple
// text matching: no stemming, no stop-word removal.
func Jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}
