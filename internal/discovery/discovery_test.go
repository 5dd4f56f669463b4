package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caretrack/directory-cli/internal/adapter"
	"github.com/caretrack/directory-cli/internal/fetch"
	"github.com/caretrack/directory-cli/internal/match"
	"github.com/caretrack/directory-cli/internal/model"
)

func newTestOrchestrator() *Orchestrator {
	return NewOrchestrator(
		fetch.NewFetcher(),
		adapter.DefaultRegistry(),
		match.NewScorer(match.DefaultWeights()),
		match.DefaultThresholds(),
		4,
	)
}

func testDirectory(id, baseURL string, maxRetries int) model.Directory {
	return model.Directory{
		ID:         id,
		Name:       "Test Directory " + id,
		AdapterKey: "unmodeled",
		BaseURL:    baseURL,
		MinDelayMs: 1,
		MaxRetries: maxRetries,
	}
}

func jane() model.Identity {
	return model.Identity{
		FullName:      "Jane Doe",
		NPI:           "1234567893",
		LicenseNumber: "LCSW-12345",
		Location:      "Austin, TX",
	}
}

const resultsPage = `<html><body>
	<li class="result">
		<a href="/therapists/jane-doe">Jane Doe</a>
		<span>Jane Doe, LCSW. Austin, TX. NPI: 1234567893</span>
	</li>
	<li class="result">
		<a href="/therapists/jane-doe?utm_source=feed">Jane Doe</a>
		<span>Duplicate listing for Jane Doe</span>
	</li>
	<li class="result">
		<a href="/therapists/zed-zed">Zed Zed</a>
		<span>Unrelated person</span>
	</li>
</body></html>`

func TestSearchOne_FindsAndRanksCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	o := newTestOrchestrator()
	res := o.SearchOne(context.Background(), jane(), testDirectory("dir-a", srv.URL, 2))

	assert.Equal(t, model.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	require.Len(t, res.Candidates, 1, "duplicates collapse, low scorers drop")

	best := res.Candidates[0]
	assert.Equal(t, "Jane Doe", best.DisplayName)
	assert.Equal(t, srv.URL+"/therapists/jane-doe", best.ProfileURL)
	assert.GreaterOrEqual(t, best.Score, match.DefaultThresholds().High)
	assert.NotEmpty(t, best.Rationale)
	assert.Contains(t, res.Notes[0], "below low-confidence cutoff")
}

func TestSearchOne_NoResultsMarker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>No results found for your search.</p></body></html>"))
	}))
	defer srv.Close()

	o := newTestOrchestrator()
	res := o.SearchOne(context.Background(), jane(), testDirectory("dir-b", srv.URL, 2))

	assert.Equal(t, model.OutcomeNoResults, res.Outcome)
	assert.Empty(t, res.Candidates)
}

func TestSearchOne_EmptyMarkupIsSuccessWithNote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><div>something unrelated entirely</div></body></html>"))
	}))
	defer srv.Close()

	o := newTestOrchestrator()
	res := o.SearchOne(context.Background(), jane(), testDirectory("dir-c", srv.URL, 2))

	assert.Equal(t, model.OutcomeSuccess, res.Outcome)
	assert.Empty(t, res.Candidates)
	require.NotEmpty(t, res.Notes)
	assert.Contains(t, res.Notes[0], "no candidates parsed")
}

func TestSearchOne_RecoversAfterSoftBlock(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("<html><body>nothing here</body></html>"))
	}))
	defer srv.Close()

	o := newTestOrchestrator()
	res := o.SearchOne(context.Background(), jane(), testDirectory("dir-d", srv.URL, 2))

	assert.Equal(t, model.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
	assert.Empty(t, res.Candidates)
}

func TestSearchOne_HardBlockStopsRetrying(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	o := newTestOrchestrator()
	dir := testDirectory("dir-e", srv.URL, 1)

	res := o.SearchOne(context.Background(), jane(), dir)
	assert.Equal(t, model.OutcomeHardBlock, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
	assert.NotEmpty(t, res.ErrorDetail)

	// The latch holds: a later search on the same site never touches the
	// network again.
	before := hits.Load()
	res = o.SearchOne(context.Background(), jane(), dir)
	assert.Equal(t, model.OutcomeHardBlock, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, before, hits.Load())
}

func TestSearchOne_NetworkFailure(t *testing.T) {
	o := newTestOrchestrator()
	res := o.SearchOne(context.Background(), jane(), testDirectory("dir-f", "http://127.0.0.1:1", 1))

	assert.Equal(t, model.OutcomeNetworkFailure, res.Outcome)
	assert.NotEmpty(t, res.ErrorDetail)
}

func TestSearchOne_UnusableDirectory(t *testing.T) {
	o := newTestOrchestrator()
	res := o.SearchOne(context.Background(), jane(), model.Directory{ID: "dir-g", Name: "Broken"})

	assert.Equal(t, model.OutcomeNetworkFailure, res.Outcome)
	assert.Contains(t, res.ErrorDetail, "base url")
}

func TestSearchBatch_CoversEveryPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	o := newTestOrchestrator()
	reqs := []Request{
		{TherapistID: "t1", Identity: jane()},
		{TherapistID: "t2", Identity: model.Identity{FullName: "Robert Smith"}},
	}
	dirs := []model.Directory{
		testDirectory("dir-h", srv.URL, 2),
		testDirectory("dir-i", srv.URL, 2),
	}

	results := o.SearchBatch(context.Background(), reqs, dirs, 0)

	require.Len(t, results, 4)
	for _, req := range reqs {
		for _, dir := range dirs {
			res, ok := results[PairKey{TherapistID: req.TherapistID, DirectoryID: dir.ID}]
			require.True(t, ok)
			assert.Equal(t, dir.ID, res.SiteID)
		}
	}

	janeRes := results[PairKey{TherapistID: "t1", DirectoryID: "dir-h"}]
	assert.Equal(t, model.OutcomeSuccess, janeRes.Outcome)
	assert.NotEmpty(t, janeRes.Candidates)
}

func TestSearchBatch_BudgetExhaustionStillYieldsEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	o := newTestOrchestrator()
	reqs := []Request{
		{TherapistID: "t1", Identity: jane()},
		{TherapistID: "t2", Identity: model.Identity{FullName: "Robert Smith"}},
		{TherapistID: "t3", Identity: model.Identity{FullName: "Alice Brown"}},
	}
	dirs := []model.Directory{testDirectory("dir-j", srv.URL, 0)}

	results := o.SearchBatch(context.Background(), reqs, dirs, time.Nanosecond)

	require.Len(t, results, len(reqs), "every pair gets an entry even when the budget dies immediately")
	skipped := 0
	for _, res := range results {
		if res.ErrorDetail == "batch stopped before this pair was searched" {
			skipped++
		}
	}
	assert.GreaterOrEqual(t, skipped, len(reqs)-1)
}

func TestClassifyError(t *testing.T) {
	// Exercised indirectly above; the nil path matters for the default arm.
	assert.Equal(t, model.OutcomeNetworkFailure, classifyError(assert.AnError))
}
