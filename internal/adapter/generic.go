package adapter

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/caretrack/directory-cli/internal/fetch"
	"github.com/caretrack/directory-cli/internal/model"
)

// profilePathRe matches link paths that plausibly point at a practitioner
// profile on an unmodeled directory.
var profilePathRe = regexp.MustCompile(`(?i)/(therapist|therapists|profile|provider|counselor|practitioner|listing|doctor)s?/`)

// Generic is the fallback adapter for directories without bespoke parsing.
// It performs a plain text search against the site and harvests links whose
// path and anchor text look like practitioner profiles.
type Generic struct {
	dir model.Directory
}

// NewGeneric creates a generic adapter scoped to a directory's base URL.
func NewGeneric(dir model.Directory) *Generic {
	return &Generic{dir: dir}
}

func (a *Generic) Key() string { return "generic:" + a.dir.ID }

func (a *Generic) Policy() fetch.SitePolicy {
	p := fetch.SitePolicy{
		Key:            a.Key(),
		MinDelay:       2 * time.Second,
		MaxRetries:     3,
		Timeout:        15 * time.Second,
		RotateIdentity: true,
		AllowRendering: a.dir.AllowRendering,
	}
	if a.dir.MinDelayMs > 0 {
		p.MinDelay = time.Duration(a.dir.MinDelayMs) * time.Millisecond
	}
	if a.dir.MaxRetries > 0 {
		p.MaxRetries = a.dir.MaxRetries
	}
	return p
}

func (a *Generic) SearchURL(id model.Identity) (string, error) {
	if strings.TrimSpace(id.FullName) == "" {
		return "", eris.Errorf("generic: identity has no name (directory %s)", a.dir.Name)
	}
	base, err := url.Parse(a.dir.BaseURL)
	if err != nil || base.Host == "" {
		return "", eris.Errorf("generic: directory %s has no usable base url: %q", a.dir.Name, a.dir.BaseURL)
	}

	query := id.FullName
	if id.Location != "" {
		query += " " + id.Location
	}
	q := url.Values{}
	q.Set("q", query)

	base.Path = strings.TrimSuffix(base.Path, "/") + "/search"
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (a *Generic) ParseResults(body []byte, base *url.URL) []RawCandidate {
	return safeParse(a.Key(), func() []RawCandidate {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil
		}

		var out []RawCandidate
		seen := make(map[string]bool)

		doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
			href, _ := link.Attr("href")
			if href == "" || seen[href] || !profilePathRe.MatchString(href) {
				return
			}
			name := cleanText(link.Text())
			if !looksLikePersonName(name) {
				return
			}
			seen[href] = true
			snippet := cleanText(link.Closest("li, article, .card, .result").Text())
			out = append(out, RawCandidate{Name: name, ProfileURL: href, Snippet: snippet})
		})
		return out
	})
}

// looksLikePersonName filters anchor text down to plausible practitioner
// names: a handful of words, at least two, not navigation copy.
func looksLikePersonName(s string) bool {
	if s == "" || len(s) > 80 {
		return false
	}
	words := strings.Fields(s)
	if len(words) < 2 || len(words) > 7 {
		return false
	}
	lower := strings.ToLower(s)
	for _, nav := range []string{"view all", "see more", "find a", "browse", "sign in", "log in", "read more", "learn more"} {
		if strings.Contains(lower, nav) {
			return false
		}
	}
	// At least the first word should start with a letter.
	first := []rune(words[0])
	if !((first[0] >= 'A' && first[0] <= 'Z') || (first[0] >= 'a' && first[0] <= 'z')) {
		return false
	}
	return true
}
