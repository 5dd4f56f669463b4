// Package model defines the shared data types for the directory tracker:
// therapist identities, discovered candidates, scored results, and the
// durable profile record that ties a therapist to a directory.
package model

import (
	"regexp"
	"time"
)

// Identity is the query input for a discovery search. It is immutable for
// the duration of a search; the engine never writes to it.
type Identity struct {
	FullName      string `json:"full_name"`
	NPI           string `json:"npi,omitempty"`
	LicenseNumber string `json:"license_number,omitempty"`
	Location      string `json:"location,omitempty"` // "City, ST" or bare state code
}

var npiRe = regexp.MustCompile(`^\d{10}$`)

// HasNPI reports whether the identity carries a well-formed 10-digit NPI.
func (i Identity) HasNPI() bool {
	return npiRe.MatchString(i.NPI)
}

// Therapist is the persisted practitioner a roster import or manual add
// creates. Its identity fields feed discovery searches.
type Therapist struct {
	ID            string    `json:"id" db:"id"`
	FullName      string    `json:"full_name" db:"full_name"`
	Credentials   string    `json:"credentials,omitempty" db:"credentials"`
	Email         string    `json:"email,omitempty" db:"email"`
	NPI           string    `json:"npi,omitempty" db:"npi"`
	LicenseNumber string    `json:"license_number,omitempty" db:"license_number"`
	Location      string    `json:"location,omitempty" db:"location"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Identity projects the therapist's search-relevant fields.
func (t Therapist) Identity() Identity {
	return Identity{
		FullName:      t.FullName,
		NPI:           t.NPI,
		LicenseNumber: t.LicenseNumber,
		Location:      t.Location,
	}
}

// Directory is a third-party listing site the tracker searches. AdapterKey
// selects the site adapter; unknown keys fall back to the generic adapter
// scoped to BaseURL.
type Directory struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	AdapterKey     string    `json:"adapter_key" db:"adapter_key"`
	BaseURL        string    `json:"base_url" db:"base_url"`
	MinDelayMs     int       `json:"min_delay_ms,omitempty" db:"min_delay_ms"`
	MaxRetries     int       `json:"max_retries,omitempty" db:"max_retries"`
	AllowRendering bool      `json:"allow_rendering" db:"allow_rendering"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Candidate is one unscored profile hit extracted from a directory's search
// results. Candidates are transient: they live for one discovery call.
type Candidate struct {
	SiteID      string            `json:"site_id"`
	ProfileURL  string            `json:"profile_url"`
	DisplayName string            `json:"display_name"`
	SnippetText string            `json:"snippet_text,omitempty"`
	Identifiers map[string]string `json:"identifiers,omitempty"` // e.g. "npi" -> "1234567890"
	FetchedAt   time.Time         `json:"fetched_at"`
}

// Identifier keys recognized across the pipeline.
const (
	IdentifierNPI     = "npi"
	IdentifierLicense = "license"
)

// Factor is one contributing or penalizing signal in a candidate's score.
type Factor struct {
	Name  string  `json:"name"`
	Delta float64 `json:"delta"`
	Note  string  `json:"note,omitempty"`
}

// ScoredCandidate is a candidate with its deterministic confidence score and
// the ordered rationale that produced it.
type ScoredCandidate struct {
	Candidate
	Score     float64  `json:"score"`
	Rationale []Factor `json:"rationale"`
}

// OutcomeKind classifies the per-site result of one discovery search.
type OutcomeKind string

const (
	OutcomeSuccess        OutcomeKind = "success"
	OutcomeSoftBlock      OutcomeKind = "soft_block"
	OutcomeHardBlock      OutcomeKind = "hard_block"
	OutcomeNetworkFailure OutcomeKind = "network_failure"
	OutcomeNoResults      OutcomeKind = "no_results"
)

// Blocked reports whether the outcome reflects a site defense rather than a
// normal (possibly empty) result.
func (k OutcomeKind) Blocked() bool {
	return k == OutcomeSoftBlock || k == OutcomeHardBlock
}

// DiscoveryResult is the outcome of searching one identity on one site.
// A result is always produced, even for total failures.
type DiscoveryResult struct {
	SiteID      string            `json:"site_id"`
	Outcome     OutcomeKind       `json:"outcome"`
	Candidates  []ScoredCandidate `json:"candidates,omitempty"`
	ErrorDetail string            `json:"error_detail,omitempty"`
	Notes       []string          `json:"notes,omitempty"`
	Attempts    int               `json:"attempts"`
}
