package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/actuallystonmai/meme-recommendation-service/internal/content"
	"github.com/actuallystonmai/meme-recommendation-service/internal/domain"
)

const memeColumns = `m.id, m.title, m.status, m.hot_score, m.tags, COALESCE(m.author_id, 0),
	m.like_count, m.dislike_count, m.created_at`

func scanMemes(rows pgx.Rows) ([]domain.Item, error) {
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		err := rows.Scan(&it.ID, &it.Title, &it.Status, &it.HotScore, &it.Tags, &it.AuthorID,
			&it.LikeCount, &it.DislikeCount, &it.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan meme: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate over memes: %w", err)
	}
	return items, nil
}

func (r *Repository) ListItemIDs(ctx context.Context) ([]int64, error) {
	return r.queryIDs(ctx, `SELECT id FROM memes ORDER BY id`)
}

func (r *Repository) GetItems(ctx context.Context, ids []int64) (map[int64]*domain.Item, error) {
	out := make(map[int64]*domain.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+memeColumns+` FROM memes m WHERE m.id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("query memes by id: %w", err)
	}
	items, err := scanMemes(rows)
	if err != nil {
		return nil, err
	}
	for i := range items {
		out[items[i].ID] = &items[i]
	}
	return out, nil
}

func (r *Repository) ListPublicByHotScore(ctx context.Context, limit int) ([]domain.Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+memeColumns+`
		FROM memes m
		WHERE m.status = 'public'
		ORDER BY m.hot_score DESC, m.id
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query hot memes: %w", err)
	}
	return scanMemes(rows)
}

func (r *Repository) ListLatestPublic(ctx context.Context, limit int) ([]domain.Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+memeColumns+`
		FROM memes m
		WHERE m.status = 'public'
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query latest memes: %w", err)
	}
	return scanMemes(rows)
}

func (r *Repository) CountPublicItems(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM memes WHERE status = 'public'`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count memes: %w", err)
	}
	return total, nil
}

func (r *Repository) CountPublicItemsWithHotScoreAtLeast(ctx context.Context, min float64) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM memes WHERE status = 'public' AND hot_score >= $1`, min,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count memes with hot score >= %v: %w", min, err)
	}
	return total, nil
}

// ListPublicNotInteracted returns the hottest public memes the user has not
// engaged with in any way.
func (r *Repository) ListPublicNotInteracted(ctx context.Context, userID int64, limit int) ([]domain.Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+memeColumns+`
		FROM memes m
		LEFT JOIN (`+engagementUnion+`) e
			ON e.meme_id = m.id AND e.user_id = $1
		WHERE m.status = 'public' AND e.meme_id IS NULL
		ORDER BY m.hot_score DESC, m.id
		LIMIT $2`, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query unseen memes for user %d: %w", userID, err)
	}
	return scanMemes(rows)
}

// UserTagHistory returns the user's latest engagements with the engaged
// meme's tags, newest first.
func (r *Repository) UserTagHistory(ctx context.Context, userID int64, limit int) ([]content.TagEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.tags, e.created_at
		FROM (`+engagementUnion+`) e
		JOIN memes m ON m.id = e.meme_id
		WHERE e.user_id = $1
		ORDER BY e.created_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get tag history for user %d: %w", userID, err)
	}
	defer rows.Close()

	var history []content.TagEvent
	for rows.Next() {
		var e content.TagEvent
		if err := rows.Scan(&e.ItemID, &e.Tags, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag history item: %w", err)
		}
		history = append(history, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate over tag history: %w", err)
	}
	return history, nil
}
