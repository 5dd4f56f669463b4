package fetch

import (
	"net/http"
	"strings"
)

// ChallengeKind names the bot-defense signature detected in a response.
type ChallengeKind string

const (
	ChallengeNone       ChallengeKind = ""
	ChallengeCloudflare ChallengeKind = "cloudflare"
	ChallengeCaptcha    ChallengeKind = "captcha"
	ChallengeDenied     ChallengeKind = "access_denied"
	ChallengeJSShell    ChallengeKind = "js_shell"
)

// DetectChallenge checks a response for known bot-challenge signatures.
// Directory sites rarely answer with an honest 403; most serve a 200
// challenge page, so the body is inspected regardless of status code.
func DetectChallenge(statusCode int, header http.Header, body []byte) (bool, ChallengeKind) {
	if statusCode == 403 || statusCode == 503 {
		if header.Get("cf-ray") != "" || header.Get("cf-cache-status") != "" {
			return true, ChallengeCloudflare
		}
		if strings.EqualFold(header.Get("server"), "cloudflare") {
			return true, ChallengeCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		(strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge")) {
		return true, ChallengeCloudflare
	}

	if strings.Contains(lower, "captcha") ||
		strings.Contains(lower, "recaptcha") ||
		strings.Contains(lower, "hcaptcha") {
		return true, ChallengeCaptcha
	}

	// Distil/Imperva style interstitials seen on member directories.
	if strings.Contains(lower, "pardon our interruption") ||
		strings.Contains(lower, "are you a robot") ||
		strings.Contains(lower, "press & hold") ||
		strings.Contains(lower, "access to this page has been denied") {
		return true, ChallengeDenied
	}

	// Tiny JS-only shell instead of results markup.
	if len(body) > 0 && len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, ChallengeJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, ChallengeJSShell
		}
	}

	return false, ChallengeNone
}
