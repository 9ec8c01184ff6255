// Package store defines the persistence contracts for profiles, campaigns
// and the application ledger.
package store

import (
	"context"
	"errors"

	"github.com/applypilot/applypilot/internal/campaign"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrCampaignNotFound    = errors.New("campaign not found")
	ErrApplicationNotFound = errors.New("application not found or not pending")
)

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*campaign.Profile, error)
	UpsertProfile(ctx context.Context, profile *campaign.Profile) (*campaign.Profile, error)
}

type CampaignStore interface {
	Create(ctx context.Context, c *campaign.Campaign) error
	Get(ctx context.Context, id string) (*campaign.Campaign, error)
	ListByUser(ctx context.Context, userID string) ([]*campaign.Campaign, error)
	ListActive(ctx context.Context) ([]*campaign.Campaign, error)
	UpdateStatus(ctx context.Context, id string, status campaign.Status) error
	Delete(ctx context.Context, id string) error

	// SaveCounters persists the quota accounting fields. Implementations
	// must refuse the write once the campaign left the active status, so a
	// cancel landing mid-tick cannot be overwritten.
	SaveCounters(ctx context.Context, c *campaign.Campaign) error

	// TryAcquire flips the per-campaign processing marker. It returns false
	// when another dispatch currently holds the campaign; overlapping ticks
	// for one campaign are the primary hazard this guards against.
	TryAcquire(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type ApplicationStore interface {
	Append(ctx context.Context, app *campaign.Application) error
	// MarkOutcome performs the only in-place ledger update allowed:
	// pending -> sent|failed.
	MarkOutcome(ctx context.Context, id string, status campaign.ApplicationStatus, fault string) error
	ListByCampaign(ctx context.Context, campaignID string) ([]*campaign.Application, error)
	CountByStatus(ctx context.Context, campaignID string, status campaign.ApplicationStatus) (int, error)
}
