package fetch

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectChallenge(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		header     http.Header
		body       string
		challenged bool
		kind       ChallengeKind
	}{
		{
			name:       "plain results page",
			status:     200,
			body:       `<html><body><div class="results">50 therapists found</div></body></html>`,
			challenged: false,
			kind:       ChallengeNone,
		},
		{
			name:       "cloudflare 403 by header",
			status:     403,
			header:     http.Header{"Cf-Ray": []string{"abc123-IAD"}},
			body:       "error",
			challenged: true,
			kind:       ChallengeCloudflare,
		},
		{
			name:       "cloudflare 200 challenge page",
			status:     200,
			body:       "<html>Checking your browser before accessing the site</html>",
			challenged: true,
			kind:       ChallengeCloudflare,
		},
		{
			name:       "recaptcha interstitial",
			status:     200,
			body:       `<div class="g-recaptcha" data-sitekey="x"></div>`,
			challenged: true,
			kind:       ChallengeCaptcha,
		},
		{
			name:       "perimeterx press and hold",
			status:     200,
			body:       "<html>Please press & hold the button below</html>",
			challenged: true,
			kind:       ChallengeDenied,
		},
		{
			name:       "pardon our interruption",
			status:     200,
			body:       "<html><h1>Pardon Our Interruption</h1></html>",
			challenged: true,
			kind:       ChallengeDenied,
		},
		{
			name:       "tiny js shell",
			status:     200,
			body:       `<html><noscript>Please enable JavaScript</noscript><script src="app.js"></script></html>`,
			challenged: true,
			kind:       ChallengeJSShell,
		},
		{
			name:       "large js-heavy page is not a shell",
			status:     200,
			body:       `<html><noscript>enable javascript</noscript>` + string(make([]byte, 4000)) + `</html>`,
			challenged: false,
			kind:       ChallengeNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header
			if header == nil {
				header = http.Header{}
			}
			challenged, kind := DetectChallenge(tt.status, header, []byte(tt.body))
			assert.Equal(t, tt.challenged, challenged)
			assert.Equal(t, tt.kind, kind)
		})
	}
}
