package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/applypilot/applypilot/internal/campaign"
)

// Memory keeps everything in process. It backs tests and database-less runs
// and mirrors the conditional-update semantics of the postgres store.
type Memory struct {
	mu         sync.Mutex
	profiles   map[string]*campaign.Profile
	campaigns  map[string]*campaign.Campaign
	apps       map[string]*campaign.Application
	processing map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		profiles:   make(map[string]*campaign.Profile),
		campaigns:  make(map[string]*campaign.Campaign),
		apps:       make(map[string]*campaign.Application),
		processing: make(map[string]bool),
	}
}

func (m *Memory) GetProfile(_ context.Context, userID string) (*campaign.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, ok := m.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}

	copied := *profile
	return &copied, nil
}

func (m *Memory) UpsertProfile(_ context.Context, profile *campaign.Profile) (*campaign.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *profile
	m.profiles[profile.UserID] = &copied

	result := copied
	return &result, nil
}

func (m *Memory) Create(_ context.Context, c *campaign.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *c
	m.campaigns[c.ID] = &copied
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*campaign.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.getLocked(id)
}

func (m *Memory) getLocked(id string) (*campaign.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, ErrCampaignNotFound
	}

	copied := *c
	return &copied, nil
}

func (m *Memory) ListByUser(_ context.Context, userID string) ([]*campaign.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*campaign.Campaign, 0)
	for _, c := range m.campaigns {
		if c.ProfileID == userID {
			copied := *c
			result = append(result, &copied)
		}
	}

	sortCampaigns(result)
	return result, nil
}

func (m *Memory) ListActive(_ context.Context) ([]*campaign.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*campaign.Campaign, 0)
	for _, c := range m.campaigns {
		if c.Status == campaign.StatusActive {
			copied := *c
			result = append(result, &copied)
		}
	}

	sortCampaigns(result)
	return result, nil
}

func sortCampaigns(campaigns []*campaign.Campaign) {
	sort.Slice(campaigns, func(i, j int) bool {
		if campaigns[i].StartedAt.Equal(campaigns[j].StartedAt) {
			return campaigns[i].ID < campaigns[j].ID
		}
		return campaigns[i].StartedAt.Before(campaigns[j].StartedAt)
	})
}

func (m *Memory) UpdateStatus(_ context.Context, id string, status campaign.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok {
		return ErrCampaignNotFound
	}

	return c.Transition(status, time.Now())
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.campaigns[id]; !ok {
		return ErrCampaignNotFound
	}

	delete(m.campaigns, id)
	delete(m.processing, id)
	return nil
}

func (m *Memory) SaveCounters(_ context.Context, c *campaign.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.campaigns[c.ID]
	if !ok {
		return ErrCampaignNotFound
	}

	if stored.Status != campaign.StatusActive {
		// Terminal or paused campaigns keep their frozen counters.
		return nil
	}

	stored.TotalSent = c.TotalSent
	stored.SentToday = c.SentToday
	stored.DayBucket = c.DayBucket
	stored.UpdatedAt = c.UpdatedAt
	return nil
}

func (m *Memory) TryAcquire(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.campaigns[id]; !ok {
		return false, ErrCampaignNotFound
	}

	if m.processing[id] {
		return false, nil
	}

	m.processing[id] = true
	return true, nil
}

func (m *Memory) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.processing, id)
	return nil
}

func (m *Memory) Append(_ context.Context, app *campaign.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *app
	m.apps[app.ID] = &copied
	return nil
}

func (m *Memory) MarkOutcome(_ context.Context, id string, status campaign.ApplicationStatus, fault string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	app, ok := m.apps[id]
	if !ok || app.Status != campaign.ApplicationPending {
		return ErrApplicationNotFound
	}

	app.Status = status
	app.Fault = fault
	return nil
}

func (m *Memory) ListByCampaign(_ context.Context, campaignID string) ([]*campaign.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*campaign.Application, 0)
	for _, app := range m.apps {
		if app.CampaignID == campaignID {
			copied := *app
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) CountByStatus(_ context.Context, campaignID string, status campaign.ApplicationStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, app := range m.apps {
		if app.CampaignID == campaignID && app.Status == status {
			count++
		}
	}
	return count, nil
}
