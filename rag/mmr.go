package rag

import "math"

// MMR selects up to k candidate indexes by maximal marginal relevance:
// each step picks the candidate maximizing
//
//	lambda*sim(query, d) - (1-lambda)*max sim(d, selected)
//
// Ties keep the earlier candidate.
func MMR(query []float32, candidates [][]float32, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	k = min(k, len(candidates))

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = Cosine(query, c)
	}

	selected := make([]int, 0, k)
	used := make([]bool, len(candidates))

	for len(selected) < k {
		best, bestScore := -1, math.Inf(-1)

		for i, c := range candidates {
			if used[i] {
				continue
			}

			redundancy := 0.0
			for j, s := range selected {
				sim := Cosine(c, candidates[s])
				if j == 0 || sim > redundancy {
					redundancy = sim
				}
			}

			score := lambda*relevance[i] - (1-lambda)*redundancy
			if score > bestScore {
				best, bestScore = i, score
			}
		}

		used[best] = true
		selected = append(selected, best)
	}

	return selected
}
