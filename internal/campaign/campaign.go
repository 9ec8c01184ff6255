package campaign

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when a status change breaks the
// one-directional lifecycle.
var ErrInvalidTransition = errors.New("invalid campaign status transition")

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

const (
	MinDurationDays = 1
	MaxDurationDays = 90

	MinApplicationsPerDay = 1
	MaxApplicationsPerDay = 50
)

// Campaign is a time-boxed, quota-limited run of automated applications,
// created from a profile snapshot at launch time.
type Campaign struct {
	ID         string  `json:"id"`
	ProfileID  string  `json:"profile_id"`
	Snapshot   Profile `json:"snapshot"`
	Duration   int     `json:"duration_days"`
	MaxPerDay  int     `json:"max_applications_per_day"`
	Status     Status  `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	EndsAt     time.Time `json:"ends_at"`
	TotalSent  int       `json:"total_sent"`
	SentToday  int       `json:"sent_today"`
	DayBucket  string    `json:"day_bucket"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// New launches a campaign from the given profile. The profile must be able
// to back a campaign and the limits must be inside the allowed ranges.
func New(profile *Profile, durationDays, maxPerDay int, now time.Time) (*Campaign, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if durationDays < MinDurationDays || durationDays > MaxDurationDays {
		return nil, fmt.Errorf("duration must be between %d and %d days, got %d", MinDurationDays, MaxDurationDays, durationDays)
	}
	if maxPerDay < MinApplicationsPerDay || maxPerDay > MaxApplicationsPerDay {
		return nil, fmt.Errorf("max applications per day must be between %d and %d, got %d", MinApplicationsPerDay, MaxApplicationsPerDay, maxPerDay)
	}

	now = now.UTC()
	return &Campaign{
		ID:        uuid.NewString(),
		ProfileID: profile.UserID,
		Snapshot:  *profile,
		Duration:  durationDays,
		MaxPerDay: maxPerDay,
		Status:    StatusActive,
		StartedAt: now,
		EndsAt:    endDate(now, durationDays),
		DayBucket: DayBucket(now),
		UpdatedAt: now,
	}, nil
}

// endDate holds the whole end-of-campaign policy. Pausing does not extend
// the end date; flipping that decision later means changing only this
// function and its caller on resume.
func endDate(startedAt time.Time, durationDays int) time.Time {
	return startedAt.AddDate(0, 0, durationDays)
}

// DayBucket is the accounting window used for the per-day quota.
func DayBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Terminal reports whether no further transitions are allowed.
func (c *Campaign) Terminal() bool {
	return c.Status == StatusCompleted || c.Status == StatusCancelled
}

// Expired reports whether the campaign window has elapsed.
func (c *Campaign) Expired(now time.Time) bool {
	return !now.Before(c.EndsAt)
}

var allowedTransitions = map[Status][]Status{
	StatusActive: {StatusPaused, StatusCompleted, StatusCancelled},
	StatusPaused: {StatusActive, StatusCancelled},
}

// Transition moves the campaign to the requested status, enforcing the
// one-directional lifecycle (only active and paused flip both ways).
func (c *Campaign) Transition(to Status, now time.Time) error {
	if c.Status == to {
		return nil
	}
	for _, allowed := range allowedTransitions[c.Status] {
		if allowed == to {
			c.Status = to
			c.UpdatedAt = now.UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
}

// rollDay resets the daily counter when the processing day moved past the
// stored bucket.
func (c *Campaign) rollDay(now time.Time) {
	if bucket := DayBucket(now); bucket != c.DayBucket {
		c.DayBucket = bucket
		c.SentToday = 0
	}
}

// RemainingQuota returns how many applications may still be sent today,
// rolling the day bucket first.
func (c *Campaign) RemainingQuota(now time.Time) int {
	c.rollDay(now)
	if remaining := c.MaxPerDay - c.SentToday; remaining > 0 {
		return remaining
	}
	return 0
}

// RecordSent accounts one successful submission. TotalSent only ever grows.
func (c *Campaign) RecordSent(now time.Time) {
	c.rollDay(now)
	c.SentToday++
	c.TotalSent++
	c.UpdatedAt = now.UTC()
}
