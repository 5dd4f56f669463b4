package adapter

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/caretrack/directory-cli/internal/fetch"
	"github.com/caretrack/directory-cli/internal/model"
)

// Zencare searches zencare.co. Friendlier to plain HTTP than the bigger
// directories; a modest delay keeps it that way.
type Zencare struct{}

// NewZencare creates the Zencare adapter.
func NewZencare() *Zencare { return &Zencare{} }

func (a *Zencare) Key() string { return "zencare" }

func (a *Zencare) Policy() fetch.SitePolicy {
	return fetch.SitePolicy{
		Key:            a.Key(),
		MinDelay:       1500 * time.Millisecond,
		MaxRetries:     3,
		Timeout:        15 * time.Second,
		RotateIdentity: true,
	}
}

func (a *Zencare) SearchURL(id model.Identity) (string, error) {
	if strings.TrimSpace(id.FullName) == "" {
		return "", eris.New("zencare: identity has no name")
	}
	q := url.Values{}
	q.Set("search", id.FullName)
	if state := stateOf(id.Location); state != "" {
		q.Set("state", state)
	}
	return "https://zencare.co/therapists?" + q.Encode(), nil
}

func (a *Zencare) ParseResults(body []byte, base *url.URL) []RawCandidate {
	return safeParse(a.Key(), func() []RawCandidate {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil
		}

		var out []RawCandidate
		seen := make(map[string]bool)

		doc.Find(`a[href^="/therapist/"], a[href*="zencare.co/therapist/"]`).Each(func(_ int, link *goquery.Selection) {
			href, ok := link.Attr("href")
			if !ok || seen[href] {
				return
			}
			name := cleanText(link.Find(".therapist-name, h3, h4").First().Text())
			if name == "" {
				name = cleanText(link.Text())
			}
			if name == "" {
				return
			}
			seen[href] = true
			snippet := cleanText(link.Closest(".therapist-card, .card, li").Text())
			out = append(out, RawCandidate{Name: name, ProfileURL: href, Snippet: snippet})
		})
		return out
	})
}

// stateOf pulls a two-letter state code from a "City, ST" location string.
func stateOf(location string) string {
	parts := strings.Split(location, ",")
	last := strings.ToUpper(strings.TrimSpace(parts[len(parts)-1]))
	if len(last) == 2 {
		return last
	}
	return ""
}
