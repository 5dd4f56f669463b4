package discovery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/caretrack/directory-cli/internal/model"
)

// SearchBatch runs the cross product of requests and directories. Sites are
// queried in parallel up to the concurrency cap; within one site, the
// identities are walked sequentially by a single worker, so the site's
// request cadence is respected by construction.
//
// The returned mapping always covers every requested pair. Units never
// started (budget exhausted, context cancelled, site hard-blocked earlier in
// the run) carry a self-describing failure entry; an in-flight fetch is
// allowed to complete rather than being hard-aborted mid-handshake.
func (o *Orchestrator) SearchBatch(ctx context.Context, reqs []Request, dirs []model.Directory, budget time.Duration) map[PairKey]model.DiscoveryResult {
	results := make(map[PairKey]model.DiscoveryResult, len(reqs)*len(dirs))
	var mu sync.Mutex

	var deadline time.Time
	if budget > 0 {
		deadline = time.Now().Add(budget)
	}
	expired := func() bool {
		return !deadline.IsZero() && time.Now().After(deadline)
	}

	log := zap.L().With(zap.String("component", "discovery.batch"))
	log.Info("starting batch discovery",
		zap.Int("identities", len(reqs)),
		zap.Int("directories", len(dirs)),
		zap.Duration("budget", budget),
	)
	start := time.Now()

	g := new(errgroup.Group)
	g.SetLimit(o.maxConcurrentSites)

	for _, dir := range dirs {
		g.Go(func() error {
			// Fetches run detached from batch cancellation; the per-fetch
			// policy timeout still bounds them. Cancellation is honored at
			// unit boundaries below.
			fetchCtx := context.WithoutCancel(ctx)

			for _, req := range reqs {
				key := PairKey{TherapistID: req.TherapistID, DirectoryID: dir.ID}

				if ctx.Err() != nil || expired() {
					mu.Lock()
					results[key] = model.DiscoveryResult{
						SiteID:      dir.ID,
						Outcome:     model.OutcomeNetworkFailure,
						ErrorDetail: "batch stopped before this pair was searched",
					}
					mu.Unlock()
					continue
				}

				res := o.SearchOne(fetchCtx, req.Identity, dir)
				mu.Lock()
				results[key] = res
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	var blocked, failed int
	for _, r := range results {
		switch {
		case r.Outcome.Blocked():
			blocked++
		case r.Outcome == model.OutcomeNetworkFailure:
			failed++
		}
	}
	log.Info("batch discovery complete",
		zap.Int("pairs", len(results)),
		zap.Int("blocked", blocked),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)),
	)

	return results
}
