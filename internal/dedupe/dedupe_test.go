package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caretrack/directory-cli/internal/model"
)

func scored(name, url string, score float64, ids map[string]string) model.ScoredCandidate {
	return model.ScoredCandidate{
		Candidate: model.Candidate{
			DisplayName: name,
			ProfileURL:  url,
			Identifiers: ids,
		},
		Score: score,
		Rationale: []model.Factor{
			{Name: "name_similarity", Delta: score, Note: name},
		},
	}
}

func TestCollapse_SameURLMerges(t *testing.T) {
	in := []model.ScoredCandidate{
		scored("Jane Doe", "https://example.com/therapists/jane?utm_source=x", 0.4, nil),
		scored("Jane Doe, LCSW", "https://Example.com/therapists/jane", 0.7, nil),
	}

	out := Collapse(in)
	require.Len(t, out, 1)
	assert.Equal(t, 0.7, out[0].Score)
	assert.Equal(t, "Jane Doe, LCSW", out[0].DisplayName)
	// The loser's rationale folds into the survivor.
	assert.Len(t, out[0].Rationale, 2)
}

func TestCollapse_SameNameMerges(t *testing.T) {
	in := []model.ScoredCandidate{
		scored("Jane Doe", "https://a.example.com/p/1", 0.5, nil),
		scored("jane doe", "https://b.example.com/p/2", 0.3, nil),
	}

	out := Collapse(in)
	require.Len(t, out, 1)
	assert.Equal(t, 0.5, out[0].Score)
}

func TestCollapse_ConflictingIdentifiersNeverMerge(t *testing.T) {
	in := []model.ScoredCandidate{
		scored("Jane Doe", "https://a.example.com/p/1", 0.9,
			map[string]string{model.IdentifierNPI: "1234567893"}),
		scored("Jane Doe", "https://b.example.com/p/2", 0.1,
			map[string]string{model.IdentifierNPI: "2999999994"}),
	}

	out := Collapse(in)
	assert.Len(t, out, 2, "same name but different NPIs are different people")
}

func TestCollapse_ConflictVetoBeatsURLIdentity(t *testing.T) {
	in := []model.ScoredCandidate{
		scored("Jane Doe", "https://a.example.com/p/1", 0.9,
			map[string]string{model.IdentifierNPI: "1234567893"}),
		scored("Jane Doe", "https://a.example.com/p/1", 0.5,
			map[string]string{model.IdentifierNPI: "2999999994"}),
	}

	out := Collapse(in)
	assert.Len(t, out, 2, "conflicting NPIs stay separate even on one URL")
}

func TestCollapse_FillsMissingIdentifiers(t *testing.T) {
	in := []model.ScoredCandidate{
		scored("Jane Doe", "https://a.example.com/p/1", 0.8, nil),
		scored("Jane Doe", "https://b.example.com/p/2", 0.4,
			map[string]string{model.IdentifierLicense: "LCSW12345"}),
	}

	out := Collapse(in)
	require.Len(t, out, 1)
	assert.Equal(t, "LCSW12345", out[0].Identifiers[model.IdentifierLicense])
}

func TestCollapse_Idempotent(t *testing.T) {
	in := []model.ScoredCandidate{
		scored("Jane Doe", "https://a.example.com/p/1", 0.5, nil),
		scored("Jane Doe", "https://a.example.com/p/1?ref=abc", 0.7, nil),
		scored("Robert Smith", "https://a.example.com/p/3", 0.2, nil),
	}

	once := Collapse(in)
	twice := Collapse(once)
	assert.Equal(t, once, twice)
}

func TestCollapse_Empty(t *testing.T) {
	assert.Empty(t, Collapse(nil))
}
