package bypass

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/FranksOps/tendril/pkg/httpclient"
)

// Detector inspects a response and names the bot-protection vendor that
// challenged or blocked it, or returns "" when it sees no signature.
type Detector func(resp *httpclient.Response) string

// DefaultDetectors returns the built-in vendor detectors in priority order.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Analyze returns the first vendor reported by detectors, or "".
func Analyze(resp *httpclient.Response, detectors []Detector) string {
	if resp == nil {
		return ""
	}
	for _, d := range detectors {
		if src := d(resp); src != "" {
			return src
		}
	}
	return ""
}

// Detect runs the default detectors.
func Detect(resp *httpclient.Response) string {
	return Analyze(resp, DefaultDetectors())
}

func header(resp *httpclient.Response, key string) string {
	if resp.Header == nil {
		return ""
	}
	return resp.Header.Get(key)
}

func serverContains(resp *httpclient.Response, needle string) bool {
	return strings.Contains(strings.ToLower(header(resp, "Server")), needle)
}

func bodyContainsAny(resp *httpclient.Response, needles ...string) bool {
	for _, n := range needles {
		if bytes.Contains(resp.Body, []byte(n)) {
			return true
		}
	}
	return false
}

func detectCloudflare(resp *httpclient.Response) string {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusServiceUnavailable {
		return ""
	}
	if serverContains(resp, "cloudflare") ||
		bodyContainsAny(resp, "cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare") {
		return "Cloudflare"
	}
	return ""
}

func detectAkamai(resp *httpclient.Response) string {
	if resp.StatusCode != http.StatusForbidden {
		return ""
	}
	if serverContains(resp, "akamai") {
		return "Akamai"
	}
	// generic "Reference #" block page
	if bodyContainsAny(resp, "Reference #") && bodyContainsAny(resp, "Access Denied") {
		return "Akamai"
	}
	return ""
}

func detectDataDome(resp *httpclient.Response) string {
	if resp.StatusCode != http.StatusForbidden {
		return ""
	}
	if serverContains(resp, "datadome") ||
		header(resp, "X-DataDome") != "" ||
		header(resp, "X-DataDome-Response") != "" ||
		bodyContainsAny(resp, "geo.captcha-delivery.com", "datadome") {
		return "DataDome"
	}
	return ""
}

func detectPerimeterX(resp *httpclient.Response) string {
	if resp.StatusCode != http.StatusForbidden {
		return ""
	}
	if header(resp, "X-Px-Captcha") != "" ||
		bodyContainsAny(resp, "client.perimeterx.net", "px-captcha", "_pxBlock") {
		return "PerimeterX"
	}
	return ""
}
