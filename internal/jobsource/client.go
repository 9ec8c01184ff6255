package jobsource

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"context"

	"github.com/applypilot/applypilot/internal/campaign"
	"go.uber.org/zap"
)

const (
	searchPath = "/postings"
	submitPath = "/applications"

	userAgent = "applypilot/1.0"
	// Max value for search per page.
	perPage = "100"
)

// Client is the HTTP implementation of both Source and Submitter.
type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(logger *zap.Logger, apiURL, token string) *Client {
	return &Client{
		token:  token,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// Search fetches candidate postings matching the criteria, walking all pages.
func (c *Client) Search(ctx context.Context, criteria *Criteria) ([]*Posting, error) {
	q := buildParams(criteria)
	return c.getPostings(ctx, c.APIURL+searchPath, q)
}

// Submit posts one finished application to the submission endpoint.
func (c *Client) Submit(ctx context.Context, posting *Posting, profile *campaign.Profile, coverLetter string) error {
	data := map[string]string{
		"posting_id":   posting.ID,
		"full_name":    profile.FullName(),
		"email":        profile.ContactEmail,
		"reply_to":     profile.ReplyToEmail,
		"phone":        profile.PhoneE164(),
		"cover_letter": coverLetter,
	}
	if profile.AccessCode != "" {
		data["access_code"] = profile.AccessCode
	}

	if err := c.postFormData(ctx, c.APIURL+submitPath, data); err != nil {
		return submissionError(err)
	}

	return nil
}

func buildParams(criteria *Criteria) url.Values {
	q := url.Values{}
	if criteria == nil {
		return q
	}

	for _, title := range criteria.Titles {
		q.Add("title", title)
	}
	if criteria.Zone != "" {
		q.Set("zone", criteria.Zone)
	}
	if criteria.ContractType != "" {
		q.Set("contract_type", criteria.ContractType)
	}
	if criteria.Limit > 0 {
		q.Set("limit", strconv.Itoa(criteria.Limit))
	}
	q.Set("per_page", perPage)

	return q
}
