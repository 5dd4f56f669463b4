// Package discovery drives profile searches across directory sites: single
// (identity, site) lookups and batched cross products. Nothing below this
// package raises an unhandled fault across a component boundary; every
// pipeline failure is folded into a classified DiscoveryResult.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caretrack/directory-cli/internal/adapter"
	"github.com/caretrack/directory-cli/internal/dedupe"
	"github.com/caretrack/directory-cli/internal/extract"
	"github.com/caretrack/directory-cli/internal/fetch"
	"github.com/caretrack/directory-cli/internal/match"
	"github.com/caretrack/directory-cli/internal/model"
	"github.com/caretrack/directory-cli/internal/resilience"
)

// Request pairs a therapist with the identity used to search for them.
type Request struct {
	TherapistID string
	Identity    model.Identity
}

// PairKey addresses one (therapist, directory) unit of a batch.
type PairKey struct {
	TherapistID string
	DirectoryID string
}

// Orchestrator wires the adapters, fetch layer, extractor, scorer, and
// deduplicator into the discovery pipeline.
type Orchestrator struct {
	fetcher    *fetch.Fetcher
	registry   *adapter.Registry
	scorer     *match.Scorer
	thresholds match.Thresholds

	// maxConcurrentSites caps how many sites a batch queries in parallel.
	// Requests within one site are always serialized.
	maxConcurrentSites int
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(f *fetch.Fetcher, reg *adapter.Registry, scorer *match.Scorer, th match.Thresholds, maxConcurrentSites int) *Orchestrator {
	if maxConcurrentSites <= 0 {
		maxConcurrentSites = 4
	}
	return &Orchestrator{
		fetcher:            f,
		registry:           reg,
		scorer:             scorer,
		thresholds:         th,
		maxConcurrentSites: maxConcurrentSites,
	}
}

// noResultsRe matches explicit empty-result markers in directory pages.
var noResultsRe = regexp.MustCompile(`(?i)\b(no (results|therapists|providers|matches)( were)? found|0 results)\b`)

// SearchOne runs the full pipeline for one identity on one directory. Any
// unexpected failure, panics included, becomes a network_failure result
// rather than an error.
func (o *Orchestrator) SearchOne(ctx context.Context, id model.Identity, dir model.Directory) (result model.DiscoveryResult) {
	result = model.DiscoveryResult{SiteID: dir.ID, Outcome: model.OutcomeNetworkFailure}

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("discovery: pipeline panic recovered",
				zap.String("directory", dir.Name),
				zap.Any("panic", r),
			)
			result = model.DiscoveryResult{
				SiteID:      dir.ID,
				Outcome:     model.OutcomeNetworkFailure,
				ErrorDetail: fmt.Sprintf("pipeline panic: %v", r),
			}
		}
	}()

	ad := o.registry.ForDirectory(dir)
	policy := policyFor(ad, dir)

	searchURL, err := ad.SearchURL(id)
	if err != nil {
		result.ErrorDetail = eris.Wrap(err, "build search url").Error()
		return result
	}
	base, err := url.Parse(searchURL)
	if err != nil {
		result.ErrorDetail = eris.Wrap(err, "parse search url").Error()
		return result
	}

	attempts := 0
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = policy.MaxRetries + 1
	retryCfg.OnRetry = func(attempt int, err error) {
		if policy.RotateIdentity {
			o.fetcher.RotateIdentity(policy.Key)
		}
		resilience.RetryLogger(policy.Key)(attempt, err)
	}

	outcome, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (fetch.Outcome, error) {
		attempts++
		out := o.fetcher.Fetch(ctx, searchURL, policy)
		switch out.Status {
		case fetch.StatusSoftBlock:
			return out, &resilience.SoftBlockError{Site: policy.Key, HTTPStatus: out.HTTPStatus}
		case fetch.StatusHardBlock:
			return out, &resilience.HardBlockError{Site: policy.Key}
		case fetch.StatusNetworkFailure:
			return out, &resilience.NetworkError{Site: policy.Key, Err: out.Err}
		default:
			return out, nil
		}
	})
	result.Attempts = attempts

	if err != nil {
		result.Outcome = classifyError(err)
		result.ErrorDetail = err.Error()
		return result
	}

	raws := ad.ParseResults(outcome.Body, base)
	if len(raws) == 0 {
		if noResultsRe.Match(outcome.Body) {
			result.Outcome = model.OutcomeNoResults
		} else {
			result.Outcome = model.OutcomeSuccess
			result.Notes = append(result.Notes, "no candidates parsed from result markup")
			if policy.AllowRendering {
				result.Notes = append(result.Notes, "site may require rendering; adapter permits fallback")
			}
		}
		return result
	}

	candidates := extract.Candidates(dir.ID, raws, base, time.Now().UTC())

	scored := make([]model.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, o.scorer.Score(id, c))
	}
	scored = dedupe.Collapse(scored)

	// Hide sub-cutoff candidates from humans; keep count for diagnostics.
	kept := scored[:0]
	for _, sc := range scored {
		if sc.Score >= o.thresholds.Low {
			kept = append(kept, sc)
		}
	}
	if dropped := len(scored) - len(kept); dropped > 0 {
		result.Notes = append(result.Notes, fmt.Sprintf("%d candidate(s) below low-confidence cutoff", dropped))
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].ProfileURL < kept[j].ProfileURL
	})

	result.Outcome = model.OutcomeSuccess
	result.Candidates = kept
	return result
}

// policyFor merges directory-level overrides onto the adapter's default
// policy.
func policyFor(ad adapter.Adapter, dir model.Directory) fetch.SitePolicy {
	p := ad.Policy()
	if dir.MinDelayMs > 0 {
		p.MinDelay = time.Duration(dir.MinDelayMs) * time.Millisecond
	}
	if dir.MaxRetries > 0 {
		p.MaxRetries = dir.MaxRetries
	}
	if dir.AllowRendering {
		p.AllowRendering = true
	}
	return p.WithDefaults()
}

func classifyError(err error) model.OutcomeKind {
	var soft *resilience.SoftBlockError
	var hard *resilience.HardBlockError
	switch {
	case errors.As(err, &hard):
		return model.OutcomeHardBlock
	case errors.As(err, &soft):
		return model.OutcomeSoftBlock
	default:
		return model.OutcomeNetworkFailure
	}
}
