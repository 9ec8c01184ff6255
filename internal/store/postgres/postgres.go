// Package postgres implements the store contracts on top of pgx. Counter
// writes are conditional updates against the persisted row so concurrent
// ticks cannot overshoot the daily quota.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool creates a pgx pool and verifies connectivity with a bounded ping.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// Store bundles all repositories over one pool.
type Store struct {
	Profiles     *ProfileRepository
	Campaigns    *CampaignRepository
	Applications *ApplicationRepository
	Documents    *DocumentRepository
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Profiles:     &ProfileRepository{pool: pool},
		Campaigns:    &CampaignRepository{pool: pool},
		Applications: &ApplicationRepository{pool: pool},
		Documents:    &DocumentRepository{pool: pool},
	}
}
