// Package extract normalizes raw adapter output into canonical candidates:
// cleaned display names, absolute profile URLs, and any identifiers (NPI,
// license numbers) found in snippet text.
package extract

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/caretrack/directory-cli/internal/adapter"
	"github.com/caretrack/directory-cli/internal/model"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// NPIs are allocated from blocks beginning 1 and 2; requiring that
	// prefix avoids swallowing phone numbers and zip+4 blobs.
	npiRe        = regexp.MustCompile(`\b[12]\d{9}\b`)
	npiLabeledRe = regexp.MustCompile(`(?i)\bNPI\s*#?\s*:?\s*(\d{10})\b`)

	// Credential prefixes run up to five letters (LCSW, LMFT, LICSW).
	licenseRe = regexp.MustCompile(`(?i)\blic(?:ense)?\.?\s*#?\s*:?\s*([A-Z]{0,5}-?\d{4,10})\b`)

	titleCaser = cases.Title(language.English)
)

// Candidates converts raw adapter hits into canonical candidates. Garbage
// input yields zero candidates; this function never fails.
func Candidates(siteID string, raws []adapter.RawCandidate, base *url.URL, now time.Time) []model.Candidate {
	var out []model.Candidate
	for _, raw := range raws {
		name := NormalizeDisplayName(raw.Name)
		if name == "" {
			continue
		}
		profileURL := resolveURL(raw.ProfileURL, base)
		if profileURL == "" {
			continue
		}

		c := model.Candidate{
			SiteID:      siteID,
			ProfileURL:  profileURL,
			DisplayName: name,
			SnippetText: collapseWhitespace(raw.Snippet),
			FetchedAt:   now,
		}
		if ids := ExtractIdentifiers(raw.Snippet); len(ids) > 0 {
			c.Identifiers = ids
		}
		out = append(out, c)
	}
	return out
}

// NormalizeDisplayName collapses whitespace and repairs shouty or lowercase
// names. Mixed-case names pass through untouched so credential suffixes like
// "LCSW" keep their casing.
func NormalizeDisplayName(name string) string {
	name = collapseWhitespace(name)
	if name == "" {
		return ""
	}
	if name == strings.ToUpper(name) || name == strings.ToLower(name) {
		return titleCaser.String(strings.ToLower(name))
	}
	return name
}

// ExtractIdentifiers pulls NPI-like and license-number patterns out of
// snippet text. Labeled NPIs win over bare 10-digit runs.
func ExtractIdentifiers(snippet string) map[string]string {
	ids := make(map[string]string)

	if m := npiLabeledRe.FindStringSubmatch(snippet); len(m) > 1 {
		ids[model.IdentifierNPI] = m[1]
	} else if m := npiRe.FindString(snippet); m != "" {
		ids[model.IdentifierNPI] = m
	}

	if m := licenseRe.FindStringSubmatch(snippet); len(m) > 1 {
		ids[model.IdentifierLicense] = strings.ToUpper(m[1])
	}

	if len(ids) == 0 {
		return nil
	}
	return ids
}

// NormalizeURL canonicalizes a profile URL for comparison: lowercased host,
// no fragment, no tracking params, no trailing slash.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "/")
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		lk := strings.ToLower(key)
		if strings.HasPrefix(lk, "utm_") || lk == "ref" || lk == "fbclid" || lk == "gclid" {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

func resolveURL(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		parsed = base.ResolveReference(parsed)
	}
	if parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return ""
	}
	return NormalizeURL(parsed.String())
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
