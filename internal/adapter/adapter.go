// Package adapter defines the per-site search adapters. An adapter knows a
// directory's search URL shape and how to harvest raw candidate records from
// its result markup. Sites without a bespoke adapter are served by the
// generic adapter resolved through the registry.
package adapter

import (
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/caretrack/directory-cli/internal/fetch"
	"github.com/caretrack/directory-cli/internal/model"
)

// RawCandidate is an unnormalized profile hit as it appears in a site's
// result markup. The extractor turns these into canonical model.Candidate
// values.
type RawCandidate struct {
	Name       string
	ProfileURL string // may be relative to the site base
	Snippet    string
}

// Adapter is the uniform capability surface expected from every site,
// bespoke or generic.
type Adapter interface {
	// Key is the adapter identifier referenced by directory rows.
	Key() string

	// Policy returns the site's default fetch policy.
	Policy() fetch.SitePolicy

	// SearchURL builds the search request URL for the identity.
	SearchURL(id model.Identity) (string, error)

	// ParseResults harvests raw candidates from result markup. Malformed or
	// unexpected markup yields nil, never an error: an unparsable page is a
	// page with no results, not a failure.
	ParseResults(body []byte, base *url.URL) []RawCandidate
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// cleanText collapses runs of whitespace. Display-name normalization proper
// happens in the extractor; adapters only tidy what they harvest.
func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// safeParse runs a parse function and converts any panic into an empty
// result. Site markup is hostile input; a selector blowing up on a weird
// document must degrade to zero candidates.
func safeParse(siteKey string, fn func() []RawCandidate) (out []RawCandidate) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("adapter: parse panic recovered",
				zap.String("site", siteKey),
				zap.Any("panic", r),
			)
			out = nil
		}
	}()
	return fn()
}
