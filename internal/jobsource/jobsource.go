// Package jobsource talks to the external posting catalog: searching
// candidate postings for a profile and submitting finished applications.
package jobsource

import (
	"context"
	"errors"
	"fmt"

	"github.com/applypilot/applypilot/internal/campaign"
)

// Posting is one candidate job posting returned by the source.
type Posting struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Employer string `json:"employer,omitempty"`
	Project  string `json:"project,omitempty"`
	Text     string `json:"text,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

// Target renders the ledger label for this posting.
func (p *Posting) Target() campaign.TargetName {
	if p.Employer != "" || p.Project != "" {
		return campaign.StructuredTarget(p.Employer, p.Project)
	}
	return campaign.PlainTarget(p.Name)
}

// Criteria are the profile-derived search filters.
type Criteria struct {
	Titles       []string
	Zone         string
	ContractType string
	Limit        int
}

type Source interface {
	Search(ctx context.Context, criteria *Criteria) ([]*Posting, error)
}

// ErrSubmissionFailed wraps any failure reported by the submission collaborator.
var ErrSubmissionFailed = errors.New("submission failed")

type Submitter interface {
	Submit(ctx context.Context, posting *Posting, profile *campaign.Profile, coverLetter string) error
}

func submissionError(err error) error {
	return fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
}
