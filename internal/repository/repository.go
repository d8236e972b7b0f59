package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the PostgreSQL store behind the recommendation engine: event
// store, meme catalog, user directory, social graph and like toggling.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}
