package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caretrack/directory-cli/internal/match"
	"github.com/caretrack/directory-cli/internal/model"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.ProfileStatus
		allowed  bool
	}{
		{model.StatusUnknown, model.StatusSearching, true},
		{model.StatusUnknown, model.StatusFoundUnconfirmed, false},
		{model.StatusSearching, model.StatusFoundUnconfirmed, true},
		{model.StatusSearching, model.StatusNotFound, true},
		{model.StatusSearching, model.StatusBlocked, true},
		{model.StatusSearching, model.StatusActiveManaged, false},
		{model.StatusFoundUnconfirmed, model.StatusActiveManaged, true},
		{model.StatusFoundUnconfirmed, model.StatusSearching, true},
		{model.StatusNotFound, model.StatusSearching, true},
		{model.StatusBlocked, model.StatusSearching, true},
		{model.StatusNotFound, model.StatusFoundUnconfirmed, false},
		{model.StatusActiveManaged, model.StatusWithdrawn, true},
		{model.StatusActiveManaged, model.StatusSearching, false},
		{model.StatusWithdrawn, model.StatusSearching, false},
		{model.StatusWithdrawn, model.StatusWithdrawn, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTransition_AppendsHistory(t *testing.T) {
	rec := NewRecord("t1", "d1", now)
	require.Equal(t, model.StatusUnknown, rec.Status)

	err := Transition(rec, model.StatusSearching, "kickoff", now)
	require.NoError(t, err)

	assert.Equal(t, model.StatusSearching, rec.Status)
	require.Len(t, rec.History, 1)
	assert.Equal(t, model.StatusUnknown, rec.History[0].From)
	assert.Equal(t, model.StatusSearching, rec.History[0].To)
	assert.Equal(t, "kickoff", rec.History[0].Note)
}

func TestTransition_InvalidMoveIsTyped(t *testing.T) {
	rec := NewRecord("t1", "d1", now)

	err := Transition(rec, model.StatusWithdrawn, "", now)
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, model.StatusUnknown, ite.From)
	assert.Equal(t, model.StatusWithdrawn, ite.To)
	assert.Empty(t, rec.History, "failed transitions leave no trace")
}

func searchingRecord(t *testing.T) *model.ProfileRecord {
	t.Helper()
	rec := NewRecord("t1", "d1", now)
	require.NoError(t, Transition(rec, model.StatusSearching, "", now))
	return rec
}

func TestApplyResult_Found(t *testing.T) {
	rec := searchingRecord(t)

	err := ApplyResult(rec, model.DiscoveryResult{
		Outcome: model.OutcomeSuccess,
		Candidates: []model.ScoredCandidate{
			{Score: 0.2},
			{Score: 0.9},
			{Score: 0.5},
		},
	}, match.DefaultThresholds(), now)
	require.NoError(t, err)

	assert.Equal(t, model.StatusFoundUnconfirmed, rec.Status)
	require.NotNil(t, rec.ConfidenceScore)
	assert.Equal(t, 0.9, *rec.ConfidenceScore)
	require.NotNil(t, rec.LastCheckedAt)
}

func TestApplyResult_NotFound(t *testing.T) {
	rec := searchingRecord(t)

	err := ApplyResult(rec, model.DiscoveryResult{
		Outcome:    model.OutcomeSuccess,
		Candidates: []model.ScoredCandidate{{Score: 0.1}},
	}, match.DefaultThresholds(), now)
	require.NoError(t, err)

	assert.Equal(t, model.StatusNotFound, rec.Status)
	assert.Nil(t, rec.ConfidenceScore)
}

func TestApplyResult_Blocked(t *testing.T) {
	for _, outcome := range []model.OutcomeKind{
		model.OutcomeSoftBlock,
		model.OutcomeHardBlock,
		model.OutcomeNetworkFailure,
	} {
		t.Run(string(outcome), func(t *testing.T) {
			rec := searchingRecord(t)
			err := ApplyResult(rec, model.DiscoveryResult{Outcome: outcome}, match.DefaultThresholds(), now)
			require.NoError(t, err)
			assert.Equal(t, model.StatusBlocked, rec.Status)
		})
	}
}

func TestApplyResult_RequiresSearching(t *testing.T) {
	rec := NewRecord("t1", "d1", now)
	err := ApplyResult(rec, model.DiscoveryResult{Outcome: model.OutcomeSuccess}, match.DefaultThresholds(), now)
	assert.Error(t, err)
}

func TestConfirm(t *testing.T) {
	rec := searchingRecord(t)
	score := 0.92
	require.NoError(t, ApplyResult(rec, model.DiscoveryResult{
		Outcome:    model.OutcomeSuccess,
		Candidates: []model.ScoredCandidate{{Score: score}},
	}, match.DefaultThresholds(), now))

	err := Confirm(rec, model.StatusActiveManaged, "https://example.com/p/1", &score, now)
	require.NoError(t, err)

	assert.Equal(t, model.StatusActiveManaged, rec.Status)
	assert.Equal(t, "https://example.com/p/1", rec.ProfileURL)
	assert.Equal(t, score, *rec.ConfidenceScore)
}

func TestConfirm_Validation(t *testing.T) {
	rec := searchingRecord(t)
	require.NoError(t, ApplyResult(rec, model.DiscoveryResult{
		Outcome:    model.OutcomeSuccess,
		Candidates: []model.ScoredCandidate{{Score: 0.9}},
	}, match.DefaultThresholds(), now))

	assert.Error(t, Confirm(rec, model.StatusNotFound, "https://example.com/p/1", nil, now),
		"target must be a confirmed sub-state")
	assert.Error(t, Confirm(rec, model.StatusActiveManaged, "", nil, now),
		"confirmation requires a URL")
	assert.Equal(t, model.StatusFoundUnconfirmed, rec.Status)
}

func TestWithdraw(t *testing.T) {
	rec := searchingRecord(t)
	require.NoError(t, ApplyResult(rec, model.DiscoveryResult{
		Outcome:    model.OutcomeSuccess,
		Candidates: []model.ScoredCandidate{{Score: 0.9}},
	}, match.DefaultThresholds(), now))
	require.NoError(t, Confirm(rec, model.StatusTherapistManaged, "https://example.com/p/1", nil, now))

	require.NoError(t, Withdraw(rec, "left the practice", now))
	assert.Equal(t, model.StatusWithdrawn, rec.Status)

	// Withdrawn is terminal.
	assert.Error(t, Transition(rec, model.StatusSearching, "", now))
}

func TestLifecycle_ReTrigger(t *testing.T) {
	rec := searchingRecord(t)
	require.NoError(t, ApplyResult(rec, model.DiscoveryResult{Outcome: model.OutcomeSuccess},
		match.DefaultThresholds(), now))
	require.Equal(t, model.StatusNotFound, rec.Status)

	// A failed search can be re-run later.
	require.NoError(t, Transition(rec, model.StatusSearching, "retry", now))
	assert.Equal(t, model.StatusSearching, rec.Status)
	assert.Len(t, rec.History, 3)
}
