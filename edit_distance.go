package main

// editDistance returns the Levenshtein distance between s1 and s2, giving
// up early once every entry in a row exceeds maxDistance (0 disables the
// cutoff). Single-row dynamic program, O(len(s2)) space.
func editDistance(s1, s2 string, maxDistance int) int {
	m := len(s1)
	n := len(s2)

	row := make([]int, n+1)
	for i := 1; i <= n; i++ {
		row[i] = i
	}

	for y := 1; y <= m; y++ {
		row[0] = y
		bestThisRow := row[0]

		previous := y - 1
		for x := 1; x <= n; x++ {
			oldRow := row[x]
			cost := 1
			if s1[y-1] == s2[x-1] {
				cost = 0
			}
			row[x] = min(previous+cost, min(row[x-1], row[x])+1)
			previous = oldRow
			bestThisRow = min(bestThisRow, row[x])
		}

		if maxDistance != 0 && bestThisRow > maxDistance {
			return maxDistance + 1
		}
	}

	return row[n]
}

// spellcheckString returns the candidate closest to text within a small
// edit distance, or "" when nothing is close enough. Undefined-name errors
// use it for their did-you-mean hints.
func spellcheckString(text string, candidates []string) string {
	const maxValidDistance = 2

	best := maxValidDistance + 1
	result := ""
	for _, c := range candidates {
		if d := editDistance(text, c, maxValidDistance); d < best {
			best = d
			result = c
		}
	}
	return result
}
