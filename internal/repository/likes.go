package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/actuallystonmai/meme-recommendation-service/internal/domain"
)

// ToggleLike adds the user's like on a meme, or removes it when present.
// Either way an existing dislike is cleared. Unknown users and memes return
// the domain not-found errors. Counters on the meme and the
// author's total_likes_received move in the same transaction.
func (r *Repository) ToggleLike(ctx context.Context, userID, memeID int64) (*domain.LikeToggleResult, error) {
	var result domain.LikeToggleResult
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		result, err = toggleLike(ctx, tx, userID, memeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// txRunner is the subset of pgx.Tx the like toggle needs.
type txRunner interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func toggleLike(ctx context.Context, tx txRunner, userID, memeID int64) (domain.LikeToggleResult, error) {
	var result domain.LikeToggleResult

	var userExists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID,
	).Scan(&userExists); err != nil {
		return result, fmt.Errorf("check user %d: %w", userID, err)
	}
	if !userExists {
		return result, domain.ErrUserNotFound
	}

	var authorID *int64
	err := tx.QueryRow(ctx,
		`SELECT author_id FROM memes WHERE id = $1 FOR UPDATE`, memeID,
	).Scan(&authorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return result, domain.ErrItemNotFound
		}
		return result, fmt.Errorf("lock meme %d: %w", memeID, err)
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM dislikes WHERE user_id = $1 AND meme_id = $2`, userID, memeID,
	)
	if err != nil {
		return result, fmt.Errorf("delete dislike: %w", err)
	}
	if tag.RowsAffected() > 0 {
		result.DislikeRemoved = true
		if _, err := tx.Exec(ctx,
			`UPDATE memes SET dislike_count = GREATEST(dislike_count - 1, 0) WHERE id = $1`, memeID,
		); err != nil {
			return result, fmt.Errorf("decrement dislike count: %w", err)
		}
	}

	tag, err = tx.Exec(ctx,
		`DELETE FROM likes WHERE user_id = $1 AND meme_id = $2`, userID, memeID,
	)
	if err != nil {
		return result, fmt.Errorf("delete like: %w", err)
	}

	delta := -1
	result.Action = domain.ActionRemoved
	if tag.RowsAffected() == 0 {
		delta = 1
		result.Action = domain.ActionAdded
		if _, err := tx.Exec(ctx,
			`INSERT INTO likes (user_id, meme_id, created_at) VALUES ($1, $2, NOW())`, userID, memeID,
		); err != nil {
			return result, fmt.Errorf("insert like: %w", err)
		}
	}

	err = tx.QueryRow(ctx,
		`UPDATE memes SET like_count = GREATEST(like_count + $2, 0) WHERE id = $1 RETURNING like_count`,
		memeID, delta,
	).Scan(&result.LikeCount)
	if err != nil {
		return result, fmt.Errorf("update like count: %w", err)
	}

	if authorID != nil {
		if _, err := tx.Exec(ctx,
			`UPDATE users SET total_likes_received = GREATEST(total_likes_received + $2, 0) WHERE id = $1`,
			*authorID, delta,
		); err != nil {
			return result, fmt.Errorf("update author %d likes: %w", *authorID, err)
		}
	}
	return result, nil
}
