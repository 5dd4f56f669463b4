package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caretrack/directory-cli/internal/model"
)

func identity() model.Identity {
	return model.Identity{
		FullName:      "Jane Doe",
		NPI:           "1234567893",
		LicenseNumber: "LCSW-12345",
		Location:      "Austin, TX",
	}
}

func TestScore_Deterministic(t *testing.T) {
	s := NewScorer(DefaultWeights())
	c := model.Candidate{
		DisplayName: "Jane Doe, LCSW",
		ProfileURL:  "https://example.com/therapists/jane-doe",
		SnippetText: "Jane Doe is a therapist in Austin, TX",
		Identifiers: map[string]string{model.IdentifierNPI: "1234567893"},
	}

	first := s.Score(identity(), c)
	second := s.Score(identity(), c)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Rationale, second.Rationale)
}

func TestScore_NPIDominance(t *testing.T) {
	s := NewScorer(DefaultWeights())

	// An NPI match dominates even when the display name shares nothing with
	// the identity.
	matched := s.Score(identity(), model.Candidate{
		DisplayName: "Completely Different Person",
		Identifiers: map[string]string{model.IdentifierNPI: "1234567893"},
	})
	assert.GreaterOrEqual(t, matched.Score, DefaultThresholds().High)

	// An NPI conflict buries an otherwise perfect name match.
	conflicted := s.Score(identity(), model.Candidate{
		DisplayName: "Jane Doe",
		Identifiers: map[string]string{model.IdentifierNPI: "2999999994"},
	})
	assert.Less(t, conflicted.Score, DefaultThresholds().Low)
}

func TestScore_RationaleNamesFactors(t *testing.T) {
	s := NewScorer(DefaultWeights())
	sc := s.Score(identity(), model.Candidate{
		DisplayName: "Jane Doe, LCSW",
		SnippetText: "Licensed clinical social worker in Austin, TX",
		Identifiers: map[string]string{
			model.IdentifierNPI:     "1234567893",
			model.IdentifierLicense: "LCSW12345",
		},
	})

	var names []string
	for _, f := range sc.Rationale {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"npi_exact", "license_exact", "name_similarity", "location_match"}, names)
	assert.Equal(t, 1.0, sc.Score, "sum exceeds 1 and must clamp")
}

func TestScore_LicenseConflictIsHalfPenalty(t *testing.T) {
	s := NewScorer(DefaultWeights())
	sc := s.Score(identity(), model.Candidate{
		DisplayName: "Jane Doe",
		Identifiers: map[string]string{model.IdentifierLicense: "LPC99999"},
	})

	require.NotEmpty(t, sc.Rationale)
	var conflict *model.Factor
	for i := range sc.Rationale {
		if sc.Rationale[i].Name == "license_conflict" {
			conflict = &sc.Rationale[i]
		}
	}
	require.NotNil(t, conflict)
	assert.InDelta(t, -0.3, conflict.Delta, 0.001)
}

func TestScore_NoSignalsScoresZero(t *testing.T) {
	s := NewScorer(DefaultWeights())
	sc := s.Score(identity(), model.Candidate{DisplayName: "Robert Smith"})
	assert.Equal(t, 0.0, sc.Score)
	assert.Empty(t, sc.Rationale)
}

func TestNameOverlap(t *testing.T) {
	tests := []struct {
		name      string
		identity  string
		candidate string
		expected  float64
	}{
		{"exact", "Jane Doe", "Jane Doe", 1.0},
		{"credential suffix stripped", "Jane Doe", "Jane Doe, LCSW, PhD", 1.0},
		{"initial matches full token", "J. Doe", "Jane Doe", 1.0},
		{"typo within jaro-winkler floor", "Katherine Doe", "Katharine Doe", 1.0},
		{"half overlap", "Jane Ann Doe", "Jane Smith Doe", 2.0 / 3.0},
		{"no overlap", "Jane Doe", "Robert Smith", 0.0},
		{"empty candidate", "Jane Doe", "", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, nameOverlap(tt.identity, tt.candidate), 0.001)
		})
	}
}

func TestLocationMatches(t *testing.T) {
	tests := []struct {
		name     string
		location string
		snippet  string
		expected bool
	}{
		{"state code standalone", "Austin, TX", "sees clients in TX and remotely", true},
		{"state code inside word", "Miami, FL", "offers reflective listening", false},
		{"city substring", "Austin, TX", "based in downtown Austin", true},
		{"empty location", "", "Austin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, locationMatches(tt.location, tt.snippet))
		})
	}
}

func TestNormalizeLicense(t *testing.T) {
	assert.Equal(t, "LCSW12345", normalizeLicense("lcsw-12345"))
	assert.Equal(t, "LCSW12345", normalizeLicense(" LCSW 12345 "))
}

func TestNewScorer_ZeroWeightsGetDefaults(t *testing.T) {
	s := NewScorer(Weights{})
	assert.Equal(t, DefaultWeights(), s.weights)
}
