package channelsearch

// Levenshtein returns the unit-cost edit distance (insertions, deletions,
// substitutions) between a and b, compared rune by rune.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Two rolling rows of the DP matrix.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1]
				continue
			}
			curr[j] = 1 + min(prev[j], curr[j-1], prev[j-1])
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// fuzzyThreshold is the maximum edit distance accepted for a query token
// of n runes: ceil(n/3).
func fuzzyThreshold(n int) int {
	return (n + 2) / 3
}
