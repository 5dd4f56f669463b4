// Package dedupe collapses scored candidates that represent the same
// underlying profile. Collapsing is conservative: candidates carrying
// conflicting identifiers are never merged, because conflicting identifiers
// mean different real people no matter how similar the names look.
package dedupe

import (
	"strings"

	"github.com/caretrack/directory-cli/internal/extract"
	"github.com/caretrack/directory-cli/internal/model"
)

// Collapse deduplicates candidates from one site. Two candidates merge when
// their normalized profile URLs are identical, or their normalized display
// names match exactly and no identifier conflicts. The survivor is the
// higher-scored candidate with the loser's rationale folded in.
//
// Collapse is idempotent: collapsing an already-collapsed set is a no-op.
func Collapse(candidates []model.ScoredCandidate) []model.ScoredCandidate {
	var out []model.ScoredCandidate

	for _, c := range candidates {
		merged := false
		for i := range out {
			if sameProfile(out[i], c) {
				out[i] = merge(out[i], c)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, c)
		}
	}
	return out
}

func sameProfile(a, b model.ScoredCandidate) bool {
	// The conflict veto is absolute: even hits on the same URL stay separate
	// when they carry different identifiers, since one of them is a
	// mis-extraction that must stay visible.
	if identifiersConflict(a.Identifiers, b.Identifiers) {
		return false
	}
	if extract.NormalizeURL(a.ProfileURL) == extract.NormalizeURL(b.ProfileURL) {
		return true
	}
	return normalizeName(a.DisplayName) == normalizeName(b.DisplayName)
}

// identifiersConflict reports whether the two candidates carry different
// values for the same identifier key.
func identifiersConflict(a, b map[string]string) bool {
	for key, av := range a {
		if bv, ok := b[key]; ok && av != bv {
			return true
		}
	}
	return false
}

// merge keeps the higher-scored candidate and appends the other's rationale
// factors, skipping exact duplicates.
func merge(a, b model.ScoredCandidate) model.ScoredCandidate {
	winner, loser := a, b
	if b.Score > a.Score {
		winner, loser = b, a
	}

	seen := make(map[string]bool, len(winner.Rationale))
	for _, f := range winner.Rationale {
		seen[f.Name+"|"+f.Note] = true
	}
	for _, f := range loser.Rationale {
		if !seen[f.Name+"|"+f.Note] {
			winner.Rationale = append(winner.Rationale, f)
			seen[f.Name+"|"+f.Note] = true
		}
	}

	// Fill identifiers the winner is missing; conflicts were excluded by
	// sameProfile.
	for key, v := range loser.Identifiers {
		if _, ok := winner.Identifiers[key]; !ok {
			if winner.Identifiers == nil {
				winner.Identifiers = make(map[string]string)
			}
			winner.Identifiers[key] = v
		}
	}
	return winner
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
