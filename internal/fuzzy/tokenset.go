// Package fuzzy implements token-set-ratio fuzzy string matching, used to
// order domain log search results by similarity to a keyword.
//
// This is deliberately hand-rolled: no library in reach implements
// rapidfuzz-style token-set ratio, and the rule is narrow enough (tokenize,
// set-diff, Levenshtein-based similarity ratio) that pulling in a generic
// string-distance package would buy nothing over writing it directly.
package fuzzy

import (
	"sort"
	"strings"
)

// TokenSetRatio scores the similarity of a and b on a 0-100 scale, the way
// rapidfuzz's token_set_ratio does: tokenize both strings, split into the
// intersection and the two set differences, then take the best pairwise
// ratio among the three reconstructed strings.
func TokenSetRatio(a, b string) int {
	ta := tokenize(a)
	tb := tokenize(b)

	if len(ta) == 0 || len(tb) == 0 {
		return ratio(a, b)
	}

	setA := toSet(ta)
	setB := toSet(tb)

	intersection := sortedIntersection(setA, setB)
	onlyA := sortedDifference(setA, setB)
	onlyB := sortedDifference(setB, setA)

	inter := strings.Join(intersection, " ")
	combinedA := strings.TrimSpace(inter + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(inter + " " + strings.Join(onlyB, " "))

	best := ratio(inter, combinedA)
	if r := ratio(inter, combinedB); r > best {
		best = r
	}
	if r := ratio(combinedA, combinedB); r > best {
		best = r
	}
	return best
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func sortedIntersection(a, b map[string]struct{}) []string {
	out := make([]string, 0)
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func sortedDifference(a, b map[string]struct{}) []string {
	out := make([]string, 0)
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// ratio returns a Levenshtein-distance-based similarity score on a 0-100
// scale, matching the convention rapidfuzz uses for its base ratio.
func ratio(a, b string) int {
	if a == "" && b == "" {
		return 100
	}
	dist := levenshtein(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 100
	}
	score := (1.0 - float64(dist)/float64(maxLen)) * 100
	if score < 0 {
		score = 0
	}
	return int(score + 0.5)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)

	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = minInt(del, minInt(ins, sub))
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
