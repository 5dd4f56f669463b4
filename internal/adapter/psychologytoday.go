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

// PsychologyToday searches the psychologytoday.com therapist finder. The
// site is aggressive about automation, so the policy is slow and rotation
// is always on.
type PsychologyToday struct{}

// NewPsychologyToday creates the Psychology Today adapter.
func NewPsychologyToday() *PsychologyToday { return &PsychologyToday{} }

func (a *PsychologyToday) Key() string { return "psychology_today" }

func (a *PsychologyToday) Policy() fetch.SitePolicy {
	return fetch.SitePolicy{
		Key:            a.Key(),
		MinDelay:       3 * time.Second,
		MaxRetries:     3,
		Timeout:        20 * time.Second,
		RotateIdentity: true,
		AllowRendering: true,
	}
}

func (a *PsychologyToday) SearchURL(id model.Identity) (string, error) {
	if strings.TrimSpace(id.FullName) == "" {
		return "", eris.New("psychology_today: identity has no name")
	}
	q := url.Values{}
	q.Set("search", id.FullName)
	if id.Location != "" {
		q.Set("near", id.Location)
	}
	return "https://www.psychologytoday.com/us/therapists?" + q.Encode(), nil
}

// ParseResults harvests profile cards. The finder has cycled through several
// card markups; selectors cover the variants seen in the wild and fall back
// to any anchor into the therapist path.
func (a *PsychologyToday) ParseResults(body []byte, base *url.URL) []RawCandidate {
	return safeParse(a.Key(), func() []RawCandidate {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil
		}

		var out []RawCandidate
		seen := make(map[string]bool)

		cards := doc.Find(".profile-card, .results-row, .result-item, [data-testid*='profile']")
		cards.Each(func(_ int, card *goquery.Selection) {
			link := card.Find(".profile-title a, .profile-name a, h2 a, h3 a").First()
			if link.Length() == 0 {
				link = card.Find(`a[href*="/us/therapists/"]`).First()
			}
			href, ok := link.Attr("href")
			if !ok || seen[href] {
				return
			}
			name := cleanText(link.Text())
			if name == "" {
				return
			}
			seen[href] = true
			out = append(out, RawCandidate{
				Name:       name,
				ProfileURL: href,
				Snippet:    cleanText(card.Text()),
			})
		})

		if len(out) > 0 {
			return out
		}

		// No recognizable cards; take bare profile links.
		doc.Find(`a[href*="/us/therapists/"]`).Each(func(_ int, link *goquery.Selection) {
			href, ok := link.Attr("href")
			name := cleanText(link.Text())
			if !ok || name == "" || seen[href] {
				return
			}
			seen[href] = true
			out = append(out, RawCandidate{Name: name, ProfileURL: href})
		})
		return out
	})
}
