package rag

import (
	"math"
	"sort"
)

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rankBySimilarity keeps the k chunks closest to query, best first. Ties keep
// storage order.
func rankBySimilarity(query []float32, chunks []DocChunk, k int) []RetrievedChunk {
	scored := make([]RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		scored = append(scored, newRetrieved(c, cosineSimilarity(query, c.Embedding.Slice())))
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
