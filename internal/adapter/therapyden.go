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

// TherapyDen searches therapyden.com.
type TherapyDen struct{}

// NewTherapyDen creates the TherapyDen adapter.
func NewTherapyDen() *TherapyDen { return &TherapyDen{} }

func (a *TherapyDen) Key() string { return "therapyden" }

func (a *TherapyDen) Policy() fetch.SitePolicy {
	return fetch.SitePolicy{
		Key:            a.Key(),
		MinDelay:       2 * time.Second,
		MaxRetries:     3,
		Timeout:        15 * time.Second,
		RotateIdentity: true,
	}
}

func (a *TherapyDen) SearchURL(id model.Identity) (string, error) {
	if strings.TrimSpace(id.FullName) == "" {
		return "", eris.New("therapyden: identity has no name")
	}
	q := url.Values{}
	q.Set("search", id.FullName)
	if id.Location != "" {
		q.Set("location", id.Location)
	}
	return "https://www.therapyden.com/therapists?" + q.Encode(), nil
}

func (a *TherapyDen) ParseResults(body []byte, base *url.URL) []RawCandidate {
	return safeParse(a.Key(), func() []RawCandidate {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil
		}

		var out []RawCandidate
		seen := make(map[string]bool)

		doc.Find(".therapist-result, .search-result, .provider-card").Each(func(_ int, card *goquery.Selection) {
			link := card.Find(`a[href*="/therapist/"], h2 a, h3 a`).First()
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

		doc.Find(`a[href*="/therapist/"]`).Each(func(_ int, link *goquery.Selection) {
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
