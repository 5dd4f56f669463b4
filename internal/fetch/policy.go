// Package fetch issues HTTP requests against directory sites with identity
// rotation, per-site request pacing, and classification of every response
// into success, soft block, hard block, or network failure. Remote failure
// is never surfaced as a Go error: callers always receive a classified
// Outcome and decide continuation themselves.
package fetch

import "time"

// StatusKind classifies a fetch result.
type StatusKind string

const (
	StatusSuccess        StatusKind = "success"
	StatusSoftBlock      StatusKind = "soft_block"
	StatusHardBlock      StatusKind = "hard_block"
	StatusNetworkFailure StatusKind = "network_failure"
)

// SitePolicy configures how a single directory site may be fetched. Each
// adapter declares a default policy; directory rows can override the pacing
// and retry knobs.
type SitePolicy struct {
	// Key identifies the site for rate-limit and block bookkeeping. Required.
	Key string

	// MinDelay is the minimum spacing between requests to the site.
	MinDelay time.Duration

	// Burst is the token bucket burst size. Almost always 1 for scrape
	// targets; >1 lets the first requests of a run go out back to back.
	Burst int

	// MaxRetries bounds retries on soft blocks and network failures. It also
	// bounds consecutive soft blocks before the site is latched hard-blocked.
	MaxRetries int

	// Timeout is the per-fetch deadline.
	Timeout time.Duration

	// RotateIdentity enables switching request identities between attempts.
	RotateIdentity bool

	// AllowRendering records that the site is known to gate content behind
	// JavaScript. The fetch layer carries the flag into outcome notes; no
	// renderer is embedded here.
	AllowRendering bool
}

// WithDefaults fills unset policy fields with conservative values.
func (p SitePolicy) WithDefaults() SitePolicy {
	if p.MinDelay <= 0 {
		p.MinDelay = 1500 * time.Millisecond
	}
	if p.Burst <= 0 {
		p.Burst = 1
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.Timeout <= 0 {
		p.Timeout = 15 * time.Second
	}
	return p
}

// Outcome is the classified result of one fetch.
type Outcome struct {
	Status     StatusKind
	Body       []byte
	HTTPStatus int
	// Err carries detail for network failures. It is informational; the
	// classification in Status is authoritative.
	Err error
}
