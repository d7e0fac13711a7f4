package fetcher

import (
	"strings"
)

// CAPTCHAType identifies the kind of challenge widget on a block page.
type CAPTCHAType string

const (
	CAPTCHANone        CAPTCHAType = ""
	CAPTCHAAmazonImage CAPTCHAType = "amazon_image"
	CAPTCHAReCaptchaV2 CAPTCHAType = "recaptcha_v2"
	CAPTCHAReCaptchaV3 CAPTCHAType = "recaptcha_v3"
	CAPTCHAHCaptcha    CAPTCHAType = "hcaptcha"
	CAPTCHATurnstile   CAPTCHAType = "turnstile"
)

// BlockDetector finds anti-bot markers in a response body.
type BlockDetector struct {
	markers []string
}

// NewBlockDetector creates a detector for the given markers. Matching is
// case-insensitive substring matching; empty markers are ignored.
func NewBlockDetector(markers []string) *BlockDetector {
	d := &BlockDetector{markers: make([]string, 0, len(markers))}
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			d.markers = append(d.markers, m)
		}
	}
	return d
}

// Match returns the first marker found in body, or "" when the body is clean.
func (d *BlockDetector) Match(body string) string {
	if len(d.markers) == 0 {
		return ""
	}
	lower := strings.ToLower(body)
	for _, m := range d.markers {
		if strings.Contains(lower, m) {
			return m
		}
	}
	return ""
}

// DetectCAPTCHA classifies the challenge widget on a page and returns its
// site key when one is present.
func DetectCAPTCHA(html string) (CAPTCHAType, string) {
	htmlLower := strings.ToLower(html)

	// Amazon's own image challenge.
	if strings.Contains(htmlLower, "/errors/validatecaptcha") || strings.Contains(htmlLower, "amzn-captcha") {
		return CAPTCHAAmazonImage, ""
	}

	if strings.Contains(htmlLower, "recaptcha") || strings.Contains(html, "g-recaptcha") {
		if siteKey := extractBetween(html, `data-sitekey="`, `"`); siteKey != "" {
			if strings.Contains(htmlLower, "recaptcha/api.js?render=") {
				return CAPTCHAReCaptchaV3, siteKey
			}
			return CAPTCHAReCaptchaV2, siteKey
		}
	}

	if strings.Contains(htmlLower, "hcaptcha") || strings.Contains(html, "h-captcha") {
		if siteKey := extractBetween(html, `data-sitekey="`, `"`); siteKey != "" {
			return CAPTCHAHCaptcha, siteKey
		}
	}

	if strings.Contains(htmlLower, "turnstile") || strings.Contains(html, "cf-turnstile") {
		if siteKey := extractBetween(html, `data-sitekey="`, `"`); siteKey != "" {
			return CAPTCHATurnstile, siteKey
		}
	}

	return CAPTCHANone, ""
}

func extractBetween(s, start, end string) string {
	idx := strings.Index(s, start)
	if idx < 0 {
		return ""
	}
	s = s[idx+len(start):]
	idx = strings.Index(s, end)
	if idx < 0 {
		return ""
	}
	return s[:idx]
}
