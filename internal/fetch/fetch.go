package fetch

import (
	"context"
	"sync"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 512 * 1024

// siteState is the per-site bookkeeping the fetcher maintains: the rate
// clock, the current identity index, and block counters. Access is guarded
// by the fetcher mutex; the limiter itself is safe for concurrent Wait.
type siteState struct {
	limiter     *rate.Limiter
	minDelay    time.Duration
	burst       int
	identity    int
	softBlocks  int
	hardBlocked bool
}

// Fetcher issues classified HTTP fetches. One Fetcher is shared by all
// concurrent discovery workers; its per-site clocks guarantee that requests
// to the same site never exceed the site's configured cadence no matter how
// many goroutines target it.
type Fetcher struct {
	client *resty.Client

	mu    sync.Mutex
	sites map[string]*siteState
}

// NewFetcher creates a Fetcher. The underlying transport carries the
// Cloudflare bypass round-tripper so the TLS and header fingerprint looks
// like a browser rather than Go's default client.
func NewFetcher() *Fetcher {
	client := resty.New()
	client.SetRetryCount(0) // retries are the orchestrator's decision
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	return &Fetcher{
		client: client,
		sites:  make(map[string]*siteState),
	}
}

func (f *Fetcher) site(policy SitePolicy) *siteState {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.sites[policy.Key]
	if !ok {
		st = &siteState{
			limiter:  rate.NewLimiter(rate.Every(policy.MinDelay), policy.Burst),
			minDelay: policy.MinDelay,
			burst:    policy.Burst,
		}
		f.sites[policy.Key] = st
		return st
	}
	// Config overrides take effect mid-session; retune the clock in place so
	// in-flight Waits keep their reservations.
	if st.minDelay != policy.MinDelay {
		st.limiter.SetLimit(rate.Every(policy.MinDelay))
		st.minDelay = policy.MinDelay
	}
	if st.burst != policy.Burst {
		st.limiter.SetBurst(policy.Burst)
		st.burst = policy.Burst
	}
	return st
}

// Fetch retrieves url under the site's policy and classifies the response.
// It blocks on the site's rate clock first, so concurrent callers targeting
// the same site are automatically paced. Failure is always returned as a
// classified Outcome, never as an error.
func (f *Fetcher) Fetch(ctx context.Context, url string, policy SitePolicy) Outcome {
	policy = policy.WithDefaults()
	st := f.site(policy)

	f.mu.Lock()
	blocked := st.hardBlocked
	f.mu.Unlock()
	if blocked {
		// Latched earlier in this session; stay away from the site.
		return Outcome{Status: StatusHardBlock}
	}

	if err := st.limiter.Wait(ctx); err != nil {
		return Outcome{Status: StatusNetworkFailure, Err: err}
	}

	f.mu.Lock()
	ident := identityPool[st.identity%len(identityPool)]
	f.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
	defer cancel()

	resp, err := f.client.R().
		SetContext(reqCtx).
		SetHeader("User-Agent", ident.UserAgent).
		SetHeader("Accept", ident.Accept).
		SetHeader("Accept-Language", ident.AcceptLanguage).
		SetHeader("Upgrade-Insecure-Requests", "1").
		Get(url)
	if err != nil {
		zap.L().Debug("fetch: transport failure",
			zap.String("site", policy.Key),
			zap.String("url", url),
			zap.Error(err),
		)
		return Outcome{Status: StatusNetworkFailure, Err: err}
	}

	body := resp.Body()
	if len(body) > maxBodyBytes {
		body = body[:maxBodyBytes]
	}
	status := resp.StatusCode()

	challenged, kind := DetectChallenge(status, resp.Header(), body)
	if status == 403 || status == 429 || challenged {
		return f.recordSoftBlock(policy, status, kind)
	}

	f.mu.Lock()
	st.softBlocks = 0
	f.mu.Unlock()

	return Outcome{Status: StatusSuccess, Body: body, HTTPStatus: status}
}

// recordSoftBlock counts a defensive response and escalates to a latched
// hard block once the site has soft-blocked past its retry budget.
func (f *Fetcher) recordSoftBlock(policy SitePolicy, httpStatus int, kind ChallengeKind) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := f.sites[policy.Key]
	st.softBlocks++
	if st.softBlocks > policy.MaxRetries {
		st.hardBlocked = true
		zap.L().Warn("fetch: site hard-blocked for this session",
			zap.String("site", policy.Key),
			zap.Int("soft_blocks", st.softBlocks),
			zap.String("challenge", string(kind)),
		)
		return Outcome{Status: StatusHardBlock, HTTPStatus: httpStatus}
	}

	zap.L().Info("fetch: soft block",
		zap.String("site", policy.Key),
		zap.Int("http_status", httpStatus),
		zap.String("challenge", string(kind)),
	)
	return Outcome{Status: StatusSoftBlock, HTTPStatus: httpStatus}
}

// RotateIdentity advances the site's request identity. Called between retry
// attempts when the policy permits rotation.
func (f *Fetcher) RotateIdentity(siteKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.sites[siteKey]; ok {
		st.identity++
	}
}

// HardBlocked reports whether the site is latched for this session.
func (f *Fetcher) HardBlocked(siteKey string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.sites[siteKey]
	return ok && st.hardBlocked
}

// Reset clears all per-site block state. A new run may try previously
// hard-blocked sites again.
func (f *Fetcher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, st := range f.sites {
		st.softBlocks = 0
		st.hardBlocked = false
	}
}
