package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/actuallystonmai/meme-recommendation-service/internal/domain"
	"github.com/actuallystonmai/meme-recommendation-service/internal/recommend"
)

// eventTables maps each engagement kind to its table. All share the columns
// (user_id, meme_id, created_at).
var eventTables = map[domain.InteractionKind]string{
	domain.KindLike:    "likes",
	domain.KindCollect: "collections",
	domain.KindComment: "comments",
	domain.KindShare:   "shares",
	domain.KindView:    "views",
}

func eventTable(kind domain.InteractionKind) (string, error) {
	table, ok := eventTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown interaction kind %q", kind)
	}
	return table, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ListEvents returns events of one kind, optionally restricted to users,
// memes and a start time.
func (r *Repository) ListEvents(ctx context.Context, kind domain.InteractionKind, q recommend.EventQuery) ([]domain.InteractionEvent, error) {
	table, err := eventTable(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT user_id, meme_id, created_at
		FROM `+table+`
		WHERE ($1::bigint[] IS NULL OR user_id = ANY($1))
		  AND ($2::bigint[] IS NULL OR meme_id = ANY($2))
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		ORDER BY created_at`,
		q.UserIDs, q.ItemIDs, nullableTime(q.Since),
	)
	if err != nil {
		return nil, fmt.Errorf("query %s events: %w", kind, err)
	}
	defer rows.Close()

	var events []domain.InteractionEvent
	for rows.Next() {
		e := domain.InteractionEvent{Kind: kind}
		if err := rows.Scan(&e.UserID, &e.ItemID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan %s event: %w", kind, err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s events: %w", kind, err)
	}
	return events, nil
}

// engagementUnion selects (user_id, meme_id, created_at) across every kind.
const engagementUnion = `
	SELECT user_id, meme_id, created_at FROM likes
	UNION ALL SELECT user_id, meme_id, created_at FROM collections
	UNION ALL SELECT user_id, meme_id, created_at FROM comments
	UNION ALL SELECT user_id, meme_id, created_at FROM shares
	UNION ALL SELECT user_id, meme_id, created_at FROM views`
