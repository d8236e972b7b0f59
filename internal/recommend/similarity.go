package recommend

import (
	"math"
	"sort"
)

// SimilarityScore is the similarity of one user to a target user.
type SimilarityScore struct {
	UserID     int64   `json:"user_id"`
	Similarity float64 `json:"similarity"`
}

// CalculateUserSimilarity returns the cosine similarity of a and b computed
// over the items both vectors contain. No overlap yields 0. The result is
// clamped to [0,1].
func CalculateUserSimilarity(a, b InteractionVector) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}

	var dot, normA, normB float64
	for item, wa := range a {
		wb, ok := b[item]
		if !ok {
			continue
		}
		dot += wa * wb
		normA += wa * wa
		normB += wb * wb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// FindSimilarUsers ranks every other row of m by similarity to target. Only
// users with positive similarity of at least minSimilarity are kept; ties are
// ordered by user id. Returns an empty slice when target has no row.
func FindSimilarUsers(target int64, m InteractionMatrix, minSimilarity float64, maxResults int) []SimilarityScore {
	row, ok := m[target]
	if !ok || maxResults <= 0 {
		return []SimilarityScore{}
	}

	scores := make([]SimilarityScore, 0)
	for userID, other := range m {
		if userID == target {
			continue
		}
		sim := CalculateUserSimilarity(row, other)
		if sim > 0 && sim >= minSimilarity {
			scores = append(scores, SimilarityScore{UserID: userID, Similarity: sim})
		}
	}

	sortSimilarities(scores)
	if len(scores) > maxResults {
		scores = scores[:maxResults]
	}
	return scores
}

func sortSimilarities(scores []SimilarityScore) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Similarity != scores[j].Similarity {
			return scores[i].Similarity > scores[j].Similarity
		}
		return scores[i].UserID < scores[j].UserID
	})
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
