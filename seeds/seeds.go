package seeds

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/actuallystonmai/meme-recommendation-service/internal/logging"
)

const (
	seedUserCount = 20
	seedMemeCount = 60
)

var memeTags = []string{"cats", "dogs", "gaming", "anime", "programming", "politics", "sports", "food", "school", "work"}

// eventSeeds is how many rows each engagement table gets before dedup.
var eventSeeds = []struct {
	table  string
	n      int
	unique bool
}{
	{"views", 600, false},
	{"likes", 250, true},
	{"collections", 80, true},
	{"comments", 90, false},
	{"shares", 40, false},
	{"dislikes", 30, true},
}

func Setup(ctx context.Context, pool *pgxpool.Pool) error {
	rng := rand.New(rand.NewSource(42))
	log := logging.With().Str("component", "seed").Logger()

	// Truncate existing data before insert
	log.Info().Msg("truncating existing data")
	if _, err := pool.Exec(ctx, `
		TRUNCATE follows, views, shares, comments, collections, dislikes, likes, memes, users
		RESTART IDENTITY CASCADE
	`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	log.Info().Msg("inserting users")
	if err := seedUsers(ctx, pool, rng, seedUserCount); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	log.Info().Msg("inserting memes")
	if err := seedMemes(ctx, pool, rng, seedMemeCount); err != nil {
		return fmt.Errorf("seed memes: %w", err)
	}

	for _, s := range eventSeeds {
		log.Info().Str("table", s.table).Msg("inserting events")
		if err := seedEvents(ctx, pool, rng, s.table, s.n, s.unique); err != nil {
			return fmt.Errorf("seed %s: %w", s.table, err)
		}
	}

	log.Info().Msg("inserting follows")
	if err := seedFollows(ctx, pool, rng, 60); err != nil {
		return fmt.Errorf("seed follows: %w", err)
	}

	if err := syncCounters(ctx, pool); err != nil {
		return fmt.Errorf("sync counters: %w", err)
	}

	log.Info().Msg("seeding complete")
	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand, n int) error {
	rows := []string{}
	args := []any{}

	for i := range n {
		createdAt := time.Now().AddDate(0, 0, -rng.Intn(365))

		base := len(args)
		rows = append(rows, fmt.Sprintf("($%d, $%d)", base+1, base+2))
		args = append(args, fmt.Sprintf("user%02d", i+1), createdAt)
	}

	if len(rows) == 0 {
		return nil
	}

	query := "INSERT INTO users (username, created_at) VALUES " + strings.Join(rows, ", ")

	_, err := pool.Exec(ctx, query, args...)
	return err
}

func seedMemes(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand, n int) error {
	statuses := []string{"public", "private", "draft"}
	statusWeights := []float64{0.85, 0.1, 0.05}

	rows := []string{}
	args := []any{}

	for i := range n {
		tags := pickTags(rng, 1+rng.Intn(3))
		title := fmt.Sprintf("%s meme #%d", tags[0], i+1)
		status := weightedChoice(rng, statuses, statusWeights)
		hotScore := math.Round(powerLawScore(rng) * 1500)
		authorID := int64(rng.Intn(seedUserCount) + 1)
		createdAt := time.Now().Add(-time.Duration(rng.Intn(90*24)) * time.Hour)

		base := len(args)
		rows = append(rows, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, title, status, hotScore, tags, authorID, createdAt)
	}

	if len(rows) == 0 {
		return nil
	}

	query := "INSERT INTO memes (title, status, hot_score, tags, author_id, created_at) VALUES " +
		strings.Join(rows, ", ")

	_, err := pool.Exec(ctx, query, args...)
	return err
}

// seedEvents inserts n skewed (user, meme) events into table. Tables keyed on
// the pair get each pair at most once.
func seedEvents(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand, table string, n int, unique bool) error {
	seen := make(map[[2]int64]bool)

	rows := []string{}
	args := []any{}

	for range n {
		userID := skewedID(rng, 1.5, seedUserCount)
		memeID := skewedID(rng, 1.3, seedMemeCount)

		key := [2]int64{userID, memeID}
		if unique && seen[key] {
			continue
		}
		seen[key] = true

		createdAt := time.Now().Add(-time.Duration(rng.Intn(120*24)) * time.Hour)

		base := len(args)
		rows = append(rows, fmt.Sprintf("($%d, $%d, $%d)", base+1, base+2, base+3))
		args = append(args, userID, memeID, createdAt)
	}

	if len(rows) == 0 {
		return nil
	}

	query := "INSERT INTO " + table + " (user_id, meme_id, created_at) VALUES " +
		strings.Join(rows, ", ")

	_, err := pool.Exec(ctx, query, args...)
	return err
}

func seedFollows(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand, n int) error {
	seen := make(map[[2]int64]bool)

	rows := []string{}
	args := []any{}

	for range n {
		follower := int64(rng.Intn(seedUserCount) + 1)
		following := skewedID(rng, 2, seedUserCount)

		key := [2]int64{follower, following}
		if follower == following || seen[key] {
			continue
		}
		seen[key] = true

		base := len(args)
		rows = append(rows, fmt.Sprintf("($%d, $%d)", base+1, base+2))
		args = append(args, follower, following)
	}

	if len(rows) == 0 {
		return nil
	}

	query := "INSERT INTO follows (follower_id, following_id) VALUES " + strings.Join(rows, ", ")

	_, err := pool.Exec(ctx, query, args...)
	return err
}

// syncCounters derives like/dislike counts and author totals from the
// seeded rows, and drops a like where the same user also disliked.
func syncCounters(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		DELETE FROM dislikes d USING likes l WHERE d.user_id = l.user_id AND d.meme_id = l.meme_id;
		UPDATE memes m SET
			like_count = (SELECT COUNT(*) FROM likes WHERE meme_id = m.id),
			dislike_count = (SELECT COUNT(*) FROM dislikes WHERE meme_id = m.id);
		UPDATE users u SET total_likes_received = (
			SELECT COALESCE(SUM(like_count), 0) FROM memes WHERE author_id = u.id
		);
	`)
	return err
}

// skewedID draws an id in [1, n] biased towards low ids.
func skewedID(rng *rand.Rand, exp float64, n int) int64 {
	id := int64(math.Ceil(math.Pow(rng.Float64(), exp) * float64(n)))
	return max(1, min(id, int64(n)))
}

func pickTags(rng *rand.Rand, k int) []string {
	perm := rng.Perm(len(memeTags))
	tags := make([]string, 0, k)
	for _, i := range perm[:min(k, len(perm))] {
		tags = append(tags, memeTags[i])
	}
	return tags
}

func powerLawScore(rng *rand.Rand) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.001
	}
	raw := math.Pow(u, 2.0)
	if raw < 0.01 {
		raw = 0.01
	}
	return math.Round(raw*100) / 100
}

func weightedChoice(rng *rand.Rand, choices []string, weights []float64) string {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if r <= cumulative {
			return choices[i]
		}
	}
	return choices[len(choices)-1]
}
