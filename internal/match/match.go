// Package match scores candidates against a queried identity. Scoring is a
// pure function of (identity, candidate): no clock, no randomness, no I/O,
// so identical inputs always produce the identical score and rationale.
package match

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
	"go.uber.org/zap"

	"github.com/caretrack/directory-cli/internal/model"
)

// Weights holds the signal weights, ordered by dominance. These mirror the
// shipped defaults; deployments tune them in config against labeled data.
type Weights struct {
	NPI      float64 `yaml:"npi" mapstructure:"npi"`
	License  float64 `yaml:"license" mapstructure:"license"`
	Name     float64 `yaml:"name" mapstructure:"name"`
	Location float64 `yaml:"location" mapstructure:"location"`
}

// DefaultWeights returns the standard signal weights.
func DefaultWeights() Weights {
	return Weights{NPI: 0.9, License: 0.6, Name: 0.3, Location: 0.1}
}

// Thresholds are the confidence cutoffs applied outside the scorer.
// Candidates under Low are hidden from humans; candidates at or above High
// may be proposed for confirmation, but confirmation itself always stays a
// human decision.
type Thresholds struct {
	Low  float64 `yaml:"low" mapstructure:"low"`
	High float64 `yaml:"high" mapstructure:"high"`
}

// DefaultThresholds returns the standard cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 0.35, High: 0.85}
}

// Scorer computes deterministic confidence scores.
type Scorer struct {
	weights Weights
}

// NewScorer creates a Scorer with the given weights. Zero-valued weights are
// replaced with defaults.
func NewScorer(w Weights) *Scorer {
	d := DefaultWeights()
	if w.NPI <= 0 {
		w.NPI = d.NPI
	}
	if w.License <= 0 {
		w.License = d.License
	}
	if w.Name <= 0 {
		w.Name = d.Name
	}
	if w.Location <= 0 {
		w.Location = d.Location
	}
	return &Scorer{weights: w}
}

// jaroWinklerFloor is the similarity above which two name tokens are treated
// as the same word (typos, transliteration).
const jaroWinklerFloor = 0.88

// Score compares a candidate against the identity and returns it with a
// confidence score in [0,1] and the ordered rationale behind it.
func (s *Scorer) Score(id model.Identity, c model.Candidate) model.ScoredCandidate {
	var (
		score   float64
		factors []model.Factor
	)
	add := func(name string, delta float64, note string) {
		score += delta
		factors = append(factors, model.Factor{Name: name, Delta: delta, Note: note})
	}

	// NPI: the dominant signal. A match is near-certain identity; a conflict
	// is near-certain non-identity regardless of the name.
	if id.HasNPI() {
		switch candNPI := c.Identifiers[model.IdentifierNPI]; {
		case candNPI == "":
			// no signal
		case candNPI == id.NPI:
			add("npi_exact", s.weights.NPI, "candidate NPI matches identity")
		default:
			add("npi_conflict", -s.weights.NPI, fmt.Sprintf("candidate NPI %s differs", candNPI))
		}
	}

	// License number.
	if lic := normalizeLicense(id.LicenseNumber); lic != "" {
		switch candLic := normalizeLicense(c.Identifiers[model.IdentifierLicense]); {
		case candLic == "":
			// no signal
		case candLic == lic:
			add("license_exact", s.weights.License, "candidate license matches identity")
		default:
			add("license_conflict", -s.weights.License/2, "candidate license differs")
		}
	}

	// Name similarity: token-set overlap after stripping credentials.
	if ratio := nameOverlap(id.FullName, c.DisplayName); ratio > 0 {
		add("name_similarity", s.weights.Name*ratio, fmt.Sprintf("token overlap %.2f", ratio))
	}

	// Location.
	if locationMatches(id.Location, c.SnippetText) {
		add("location_match", s.weights.Location, "identity location appears in snippet")
	}

	if math.IsNaN(score) || math.IsInf(score, 0) {
		// Unreachable with finite weights; a hit here is a programming
		// fault, not bad input.
		zap.L().Error("match: scoring inconsistency",
			zap.String("identity", id.FullName),
			zap.String("candidate", c.DisplayName),
			zap.Float64("score", score),
		)
		score = 0
	}
	score = math.Min(1, math.Max(0, score))

	return model.ScoredCandidate{Candidate: c, Score: score, Rationale: factors}
}

// credentialSuffixes are the post-nominal tokens stripped from display names
// before comparison.
var credentialSuffixes = map[string]bool{
	"lcsw": true, "lmsw": true, "licsw": true, "lisw": true, "msw": true,
	"lmhc": true, "lpc": true, "lcpc": true, "lpcc": true, "ncc": true,
	"lmft": true, "mft": true, "cadc": true, "crc": true,
	"phd": true, "psyd": true, "edd": true, "md": true, "do": true,
	"ma": true, "ms": true, "med": true, "mdiv": true,
	"rn": true, "np": true, "pmhnp": true, "aprn": true, "apn": true,
	"bcba": true, "bcba-d": true,
}

var nonNameRe = regexp.MustCompile(`[^a-z0-9\s-]`)

// nameTokens lowercases, removes punctuation and credential suffixes, and
// splits into tokens.
func nameTokens(name string) []string {
	cleaned := nonNameRe.ReplaceAllString(strings.ToLower(name), " ")
	var out []string
	for _, tok := range strings.Fields(cleaned) {
		if credentialSuffixes[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// nameOverlap computes the fraction of identity name tokens matched by the
// candidate's tokens. Single-letter initials on either side match any token
// sharing the initial; other tokens match exactly or above the Jaro-Winkler
// floor.
func nameOverlap(identityName, candidateName string) float64 {
	want := nameTokens(identityName)
	have := nameTokens(candidateName)
	if len(want) == 0 || len(have) == 0 {
		return 0
	}

	matched := 0
	used := make([]bool, len(have))
	for _, w := range want {
		for i, h := range have {
			if used[i] {
				continue
			}
			if tokensMatch(w, h) {
				used[i] = true
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(want))
}

func tokensMatch(a, b string) bool {
	if a == b {
		return true
	}
	// Initial vs full token: "a" matches "anne".
	if len(a) == 1 || len(b) == 1 {
		return a[0] == b[0]
	}
	return matchr.JaroWinkler(a, b, false) >= jaroWinklerFloor
}

// locationMatches checks the identity's state code or city against the
// candidate snippet.
func locationMatches(location, snippet string) bool {
	location = strings.TrimSpace(location)
	if location == "" || snippet == "" {
		return false
	}
	snippetLower := strings.ToLower(snippet)

	for _, part := range strings.Split(location, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if len(part) == 2 {
			// State code: match as a standalone word to avoid "fl" hitting
			// "reflective".
			re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(part) + `\b`)
			if re.MatchString(snippet) {
				return true
			}
			continue
		}
		if strings.Contains(snippetLower, strings.ToLower(part)) {
			return true
		}
	}
	return false
}

var licenseCleanRe = regexp.MustCompile(`[^A-Z0-9]`)

func normalizeLicense(lic string) string {
	return licenseCleanRe.ReplaceAllString(strings.ToUpper(lic), "")
}
