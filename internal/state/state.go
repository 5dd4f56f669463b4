// Package state implements the profile lifecycle. Every status change on a
// ProfileRecord goes through Transition, which enforces the lifecycle graph
// and appends to the record's history. The engine can move a record between
// search-derived states; the four confirmed sub-states are reachable only
// through Confirm, which models an explicit human decision.
package state

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/caretrack/directory-cli/internal/match"
	"github.com/caretrack/directory-cli/internal/model"
)

// validTransitions is the lifecycle graph. Absence means forbidden.
var validTransitions = map[model.ProfileStatus][]model.ProfileStatus{
	model.StatusUnknown: {model.StatusSearching},
	model.StatusSearching: {
		model.StatusFoundUnconfirmed,
		model.StatusNotFound,
		model.StatusBlocked,
	},
	// Search-derived states may be re-triggered manually.
	model.StatusFoundUnconfirmed: {
		model.StatusActiveManaged,
		model.StatusExistsUnmanaged,
		model.StatusNeedsClaiming,
		model.StatusTherapistManaged,
		model.StatusSearching,
	},
	model.StatusNotFound: {model.StatusSearching},
	model.StatusBlocked:  {model.StatusSearching},

	model.StatusActiveManaged:    {model.StatusWithdrawn},
	model.StatusExistsUnmanaged:  {model.StatusWithdrawn},
	model.StatusNeedsClaiming:    {model.StatusWithdrawn},
	model.StatusTherapistManaged: {model.StatusWithdrawn},

	model.StatusWithdrawn: nil,
}

// InvalidTransitionError reports a forbidden lifecycle move.
type InvalidTransitionError struct {
	From model.ProfileStatus
	To   model.ProfileStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid profile transition %s -> %s", e.From, e.To)
}

// CanTransition reports whether the move is permitted by the lifecycle.
func CanTransition(from, to model.ProfileStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// NewRecord creates a fresh record for a pairing in the unknown state.
func NewRecord(therapistID, directoryID string, now time.Time) *model.ProfileRecord {
	return &model.ProfileRecord{
		ID:          uuid.New().String(),
		TherapistID: therapistID,
		DirectoryID: directoryID,
		Status:      model.StatusUnknown,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Transition moves the record to a new status, appending a history entry.
func Transition(rec *model.ProfileRecord, to model.ProfileStatus, note string, now time.Time) error {
	if !CanTransition(rec.Status, to) {
		return &InvalidTransitionError{From: rec.Status, To: to}
	}
	rec.History = append(rec.History, model.HistoryEntry{
		From: rec.Status,
		To:   to,
		At:   now,
		Note: note,
	})
	rec.Status = to
	rec.UpdatedAt = now
	return nil
}

// ApplyResult maps a discovery result onto the searching record. Qualifying
// candidates (at or above the low cutoff) lead to found_unconfirmed; a clean
// search with none leads to not_found; blocks lead to blocked.
func ApplyResult(rec *model.ProfileRecord, res model.DiscoveryResult, th match.Thresholds, now time.Time) error {
	if rec.Status != model.StatusSearching {
		return eris.Errorf("state: apply result on %s record (want %s)", rec.Status, model.StatusSearching)
	}
	rec.LastCheckedAt = &now

	switch {
	case res.Outcome.Blocked():
		return Transition(rec, model.StatusBlocked, string(res.Outcome), now)

	case res.Outcome == model.OutcomeNetworkFailure:
		// The site was never reached; stay searchable rather than recording
		// a definitive absence.
		return Transition(rec, model.StatusBlocked, "network failure: "+res.ErrorDetail, now)

	default:
		best := bestQualifying(res.Candidates, th)
		if best == nil {
			return Transition(rec, model.StatusNotFound, "no qualifying candidates", now)
		}
		rec.ConfidenceScore = &best.Score
		note := fmt.Sprintf("%d candidate(s), best %.2f", len(res.Candidates), best.Score)
		return Transition(rec, model.StatusFoundUnconfirmed, note, now)
	}
}

// Confirm performs the human confirmation decision: it records the accepted
// candidate URL and score and moves the record into one of the four
// confirmed sub-states. The engine never calls this on its own.
func Confirm(rec *model.ProfileRecord, target model.ProfileStatus, chosenURL string, score *float64, now time.Time) error {
	if !target.Confirmed() {
		return eris.Errorf("state: %s is not a confirmable status", target)
	}
	if chosenURL == "" {
		return eris.New("state: confirmation requires the accepted candidate URL")
	}
	if err := Transition(rec, target, "confirmed "+chosenURL, now); err != nil {
		return err
	}
	rec.ProfileURL = chosenURL
	if score != nil {
		rec.ConfidenceScore = score
	}
	return nil
}

// Withdraw deactivates a confirmed profile. The record is kept for audit.
func Withdraw(rec *model.ProfileRecord, note string, now time.Time) error {
	return Transition(rec, model.StatusWithdrawn, note, now)
}

func bestQualifying(candidates []model.ScoredCandidate, th match.Thresholds) *model.ScoredCandidate {
	var best *model.ScoredCandidate
	for i := range candidates {
		c := &candidates[i]
		if c.Score < th.Low {
			continue
		}
		if best == nil || c.Score > best.Score {
			best = c
		}
	}
	return best
}
