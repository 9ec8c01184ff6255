package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/applypilot/applypilot/internal/campaign"
	"github.com/applypilot/applypilot/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CampaignRepository struct {
	pool *pgxpool.Pool
}

const campaignColumns = `
    id, profile_id, snapshot, duration_days, max_per_day, status,
    started_at, ends_at, total_sent, sent_today, day_bucket, updated_at`

func (r *CampaignRepository) Create(ctx context.Context, c *campaign.Campaign) error {
	snapshot, err := json.Marshal(c.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal profile snapshot: %w", err)
	}

	query := `
        INSERT INTO campaigns (` + campaignColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err = r.pool.Exec(ctx, query,
		c.ID, c.ProfileID, snapshot, c.Duration, c.MaxPerDay, c.Status,
		c.StartedAt, c.EndsAt, c.TotalSent, c.SentToday, c.DayBucket, c.UpdatedAt,
	)
	return err
}

func scanCampaign(row pgx.Row) (*campaign.Campaign, error) {
	var c campaign.Campaign
	var snapshot []byte

	err := row.Scan(
		&c.ID, &c.ProfileID, &snapshot, &c.Duration, &c.MaxPerDay, &c.Status,
		&c.StartedAt, &c.EndsAt, &c.TotalSent, &c.SentToday, &c.DayBucket, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(snapshot, &c.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal profile snapshot: %w", err)
	}

	return &c, nil
}

func (r *CampaignRepository) Get(ctx context.Context, id string) (*campaign.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	return scanCampaign(r.pool.QueryRow(ctx, query, id))
}

func (r *CampaignRepository) list(ctx context.Context, query string, args ...any) ([]*campaign.Campaign, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := make([]*campaign.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, rows.Err()
}

func (r *CampaignRepository) ListByUser(ctx context.Context, userID string) ([]*campaign.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE profile_id = $1 ORDER BY started_at, id`
	return r.list(ctx, query, userID)
}

func (r *CampaignRepository) ListActive(ctx context.Context) ([]*campaign.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status = $1 ORDER BY started_at, id`
	return r.list(ctx, query, campaign.StatusActive)
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id string, status campaign.Status) error {
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	previous := current.Status
	if err := current.Transition(status, time.Now()); err != nil {
		return err
	}

	// Guarded by the previous status so a concurrent transition loses
	// cleanly instead of resurrecting a terminal campaign.
	tag, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		current.Status, current.UpdatedAt, id, previous,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("campaign %s changed concurrently, status not updated", id)
	}

	return nil
}

func (r *CampaignRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrCampaignNotFound
	}
	return nil
}

// SaveCounters writes the quota fields with a compare-and-swap on status so
// counters of paused or terminal campaigns stay frozen.
func (r *CampaignRepository) SaveCounters(ctx context.Context, c *campaign.Campaign) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE campaigns
         SET total_sent = $1, sent_today = $2, day_bucket = $3, updated_at = $4
         WHERE id = $5 AND status = $6`,
		c.TotalSent, c.SentToday, c.DayBucket, c.UpdatedAt, c.ID, campaign.StatusActive,
	)
	return err
}

func (r *CampaignRepository) TryAcquire(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET processing = TRUE WHERE id = $1 AND processing = FALSE`,
		id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CampaignRepository) Release(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE campaigns SET processing = FALSE WHERE id = $1`, id)
	return err
}
