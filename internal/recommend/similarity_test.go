package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateUserSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b InteractionVector
		want float64
	}{
		{"both empty", InteractionVector{}, InteractionVector{}, 0},
		{"one empty", InteractionVector{1: 1}, InteractionVector{}, 0},
		{"nil vectors", nil, nil, 0},
		{"disjoint", InteractionVector{1: 1, 2: 2}, InteractionVector{3: 1.5, 4: 2.5}, 0},
		{"identical", InteractionVector{1: 1, 2: 2}, InteractionVector{1: 1, 2: 2}, 1},
		{"proportional", InteractionVector{1: 1, 2: 2}, InteractionVector{1: 3, 2: 6}, 1},
		{"single shared item", InteractionVector{1: 1, 2: 5}, InteractionVector{1: 9, 3: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateUserSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCalculateUserSimilarityInRange(t *testing.T) {
	a := InteractionVector{1: 1.0, 2: 2.0, 3: 1.5}
	b := InteractionVector{1: 1.5, 2: 2.5, 3: 1.0}

	sim := CalculateUserSimilarity(a, b)
	assert.Greater(t, sim, 0.0)
	assert.LessOrEqual(t, sim, 1.0)
	assert.Equal(t, sim, CalculateUserSimilarity(b, a))
}

func TestFindSimilarUsers(t *testing.T) {
	m := InteractionMatrix{
		1: {1: 1.0, 2: 2.0, 3: 1.5},
		2: {1: 1.5, 2: 2.5, 3: 1.0},
		3: {4: 1.0, 5: 2.0},
		4: {1: 1.0, 2: 2.0, 3: 1.5},
		5: {1: 3.0, 2: 0.5},
	}

	got := FindSimilarUsers(1, m, 0.1, 10)
	if assert.NotEmpty(t, got) {
		assert.Equal(t, int64(4), got[0].UserID)
		assert.InDelta(t, 1.0, got[0].Similarity, 1e-9)
	}
	for i, s := range got {
		assert.NotEqual(t, int64(1), s.UserID)
		assert.NotEqual(t, int64(3), s.UserID, "disjoint user must be excluded")
		assert.GreaterOrEqual(t, s.Similarity, 0.1)
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Similarity, s.Similarity)
		}
	}
}

func TestFindSimilarUsersTruncatesAndBreaksTies(t *testing.T) {
	m := InteractionMatrix{
		1: {1: 1},
		7: {1: 2},
		3: {1: 4},
		5: {1: 1},
	}
	got := FindSimilarUsers(1, m, 0.5, 2)
	assert.Equal(t, []SimilarityScore{{UserID: 3, Similarity: 1}, {UserID: 5, Similarity: 1}}, got)
}

func TestFindSimilarUsersMinSimilarity(t *testing.T) {
	m := InteractionMatrix{
		1: {1: 1, 2: 1},
		2: {1: 1, 2: 0.1},
	}
	assert.Empty(t, FindSimilarUsers(1, m, 0.99, 10))
	assert.Len(t, FindSimilarUsers(1, m, 0.5, 10), 1)
}

func TestFindSimilarUsersTargetAbsent(t *testing.T) {
	m := InteractionMatrix{1: {1: 1}}
	got := FindSimilarUsers(99, m, 0.1, 10)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
