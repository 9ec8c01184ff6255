package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/applypilot/applypilot/internal/campaign"
	"github.com/applypilot/applypilot/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ApplicationRepository struct {
	pool *pgxpool.Pool
}

func (r *ApplicationRepository) Append(ctx context.Context, app *campaign.Application) error {
	// target_name is stored as JSON: either a bare string or an
	// {employer, project} object, matching what older records hold.
	target, err := json.Marshal(app.Target)
	if err != nil {
		return fmt.Errorf("marshal target name: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO campaign_applications (id, campaign_id, target_name, status, fault, created_at)
         VALUES ($1,$2,$3,$4,$5,$6)`,
		app.ID, app.CampaignID, target, app.Status, app.Fault, app.CreatedAt,
	)
	return err
}

func (r *ApplicationRepository) MarkOutcome(ctx context.Context, id string, status campaign.ApplicationStatus, fault string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE campaign_applications SET status = $1, fault = $2
         WHERE id = $3 AND status = $4`,
		status, fault, id, campaign.ApplicationPending,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrApplicationNotFound
	}
	return nil
}

func (r *ApplicationRepository) ListByCampaign(ctx context.Context, campaignID string) ([]*campaign.Application, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, campaign_id, target_name, status, fault, created_at
         FROM campaign_applications
         WHERE campaign_id = $1
         ORDER BY created_at, id`,
		campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*campaign.Application, error) {
		var app campaign.Application
		var target []byte
		if err := row.Scan(&app.ID, &app.CampaignID, &target, &app.Status, &app.Fault, &app.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(target, &app.Target); err != nil {
			return nil, fmt.Errorf("unmarshal target name: %w", err)
		}
		return &app, nil
	})
}

func (r *ApplicationRepository) CountByStatus(ctx context.Context, campaignID string, status campaign.ApplicationStatus) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM campaign_applications WHERE campaign_id = $1 AND status = $2`,
		campaignID, status,
	).Scan(&count)
	return count, err
}
