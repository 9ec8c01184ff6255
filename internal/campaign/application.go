package campaign

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ApplicationStatus string

const (
	ApplicationPending ApplicationStatus = "pending"
	ApplicationSent    ApplicationStatus = "sent"
	ApplicationFailed  ApplicationStatus = "failed"
)

// TargetName labels the posting an application was aimed at. Older records
// store a plain string, newer ones an {employer, project} pair; both shapes
// must round-trip.
type TargetName struct {
	Plain    string
	Employer string
	Project  string
}

func PlainTarget(name string) TargetName {
	return TargetName{Plain: name}
}

func StructuredTarget(employer, project string) TargetName {
	return TargetName{Employer: employer, Project: project}
}

// Render produces the display label, falling back to a dash when nothing
// usable is present.
func (t TargetName) Render() string {
	if t.Plain != "" {
		return t.Plain
	}
	parts := make([]string, 0, 2)
	if t.Employer != "" {
		parts = append(parts, t.Employer)
	}
	if t.Project != "" {
		parts = append(parts, t.Project)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " / ")
}

type structuredTarget struct {
	Employer string `json:"employer"`
	Project  string `json:"project"`
}

func (t TargetName) MarshalJSON() ([]byte, error) {
	if t.Employer != "" || t.Project != "" {
		return json.Marshal(structuredTarget{Employer: t.Employer, Project: t.Project})
	}
	return json.Marshal(t.Plain)
}

func (t *TargetName) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*t = TargetName{Plain: plain}
		return nil
	}

	var structured structuredTarget
	if err := json.Unmarshal(data, &structured); err != nil {
		return fmt.Errorf("target name must be a string or an {employer, project} object: %w", err)
	}

	*t = TargetName{Employer: structured.Employer, Project: structured.Project}
	return nil
}

// Application is one row of the append-only submission ledger. The only
// in-place change ever made is the pending -> sent|failed transition.
type Application struct {
	ID         string            `json:"id"`
	CampaignID string            `json:"campaign_id"`
	Target     TargetName        `json:"target_name"`
	Status     ApplicationStatus `json:"status"`
	Fault      string            `json:"fault,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// NewApplication opens a pending ledger row for one attempt.
func NewApplication(campaignID string, target TargetName, now time.Time) *Application {
	return &Application{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		Target:     target,
		Status:     ApplicationPending,
		CreatedAt:  now.UTC(),
	}
}

// FailedApplication records an attempt that never reached submission,
// keeping the failure reason so short days stay explainable.
func FailedApplication(campaignID string, target TargetName, fault string, now time.Time) *Application {
	app := NewApplication(campaignID, target, now)
	app.Status = ApplicationFailed
	app.Fault = fault
	return app
}
