package campaign

import (
	"errors"
	"strings"
	"time"
)

// ErrProfileIncomplete is returned when a profile cannot back a campaign yet.
var ErrProfileIncomplete = errors.New("profile is incomplete: a cv document and at least one preferred job title are required")

type Gender string

const (
	GenderUnset  Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type ContractType string

const (
	ContractInternship     ContractType = "internship"
	ContractApprenticeship ContractType = "apprenticeship"
	ContractFixedTerm      ContractType = "fixed_term"
	ContractPermanent      ContractType = "permanent"
	ContractFreelance      ContractType = "freelance"
	ContractTemporary      ContractType = "temporary"
)

type TargetZone string

const (
	ZoneAnywhere      TargetZone = "anywhere"
	ZoneRemote        TargetZone = "remote"
	ZoneIleDeFrance   TargetZone = "ile_de_france"
	ZoneNorth         TargetZone = "north"
	ZoneSouth         TargetZone = "south"
	ZoneEast          TargetZone = "east"
	ZoneWest          TargetZone = "west"
	ZoneInternational TargetZone = "international"
)

// FarFuture is the sentinel used when a profile has no latest end date.
var FarFuture = time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)

// Profile holds the durable application preferences of one user. Campaigns
// snapshot it at launch, so later edits never alter an in-flight campaign.
type Profile struct {
	UserID             string       `json:"user_id"`
	PreferredJobTitles []string     `json:"preferred_job_titles"`
	FirstName          string       `json:"first_name"`
	LastName           string       `json:"last_name"`
	PhoneCountryCode   string       `json:"phone_country_code"`
	PhoneNational      string       `json:"phone_national"`
	ContactEmail       string       `json:"contact_email"`
	Gender             Gender       `json:"gender,omitempty"`
	ContractType       ContractType `json:"contract_type"`
	EarliestStart      time.Time    `json:"earliest_start"`
	LatestEnd          time.Time    `json:"latest_end"`
	MinDurationMonths  int          `json:"min_duration_months"`
	MaxDurationMonths  int          `json:"max_duration_months"`
	TargetZone         TargetZone   `json:"target_zone"`
	CVDocumentID       string       `json:"cv_document_id"`
	ContextNotes       string       `json:"context_notes"`
	ReplyToEmail       string       `json:"reply_to_email"`
	AccessCode         string       `json:"access_code,omitempty"`
}

// Normalize fills the defaults a freshly upserted profile is expected to carry.
func (p *Profile) Normalize() {
	if p.LatestEnd.IsZero() {
		p.LatestEnd = FarFuture
	}
	if p.MaxDurationMonths == 0 {
		p.MaxDurationMonths = 99
	}
	if p.ReplyToEmail == "" {
		p.ReplyToEmail = p.ContactEmail
	}

	titles := make([]string, 0, len(p.PreferredJobTitles))
	for _, title := range p.PreferredJobTitles {
		if title = strings.TrimSpace(title); title != "" {
			titles = append(titles, title)
		}
	}
	p.PreferredJobTitles = titles
}

// Validate reports whether the profile can back a campaign launch.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.CVDocumentID) == "" || len(p.PreferredJobTitles) == 0 {
		return ErrProfileIncomplete
	}
	return nil
}

// trunkZeroDialCodes lists dial codes whose national numbering plan uses a
// leading trunk "0" that must be dropped in international format.
var trunkZeroDialCodes = map[string]bool{
	"+31": true, // Netherlands
	"+32": true, // Belgium
	"+33": true, // France
	"+41": true, // Switzerland
	"+43": true, // Austria
	"+44": true, // United Kingdom
	"+46": true, // Sweden
	"+49": true, // Germany
}

// PhoneE164 derives the full international phone number from the selected
// country code and the locally entered national number.
func (p *Profile) PhoneE164() string {
	code := strings.TrimSpace(p.PhoneCountryCode)
	if code == "" {
		return ""
	}
	if !strings.HasPrefix(code, "+") {
		code = "+" + code
	}

	var national strings.Builder
	for _, r := range p.PhoneNational {
		if r >= '0' && r <= '9' {
			national.WriteRune(r)
		}
	}

	number := national.String()
	if number == "" {
		return ""
	}

	if trunkZeroDialCodes[code] {
		number = strings.TrimPrefix(number, "0")
	}

	return code + number
}

// FullName renders the display name used on submissions.
func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
