package locator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Keywords that mark an anti-automation interstitial when the body is not JSON.
var antiAutomationKeywords = []string{
	"captcha",
	"access denied",
	"forbidden",
	"bot detection",
	"unusual traffic",
	"warning",
}

// DetectIssues inspects a search result for signs the endpoint refused or
// challenged the request. An empty slice means the response looks like a
// normal API success.
func DetectIssues(res *SearchResult) []string {
	var issues []string

	status := res.StatusCode
	if status == 403 || status == 429 || status == 503 || status >= 500 {
		issues = append(issues, fmt.Sprintf("Unexpected status code %d", status))
	}

	contentType := strings.ToLower(res.ContentType)
	if !strings.Contains(contentType, "json") {
		lowered := strings.ToLower(string(res.Body))
		blocked := false
		for _, kw := range antiAutomationKeywords {
			if strings.Contains(lowered, kw) {
				blocked = true
				break
			}
		}
		if blocked {
			issues = append(issues, "Response body appears to be an anti-automation warning page")
		} else {
			issues = append(issues, fmt.Sprintf("Unexpected content-type %q (expected JSON)", contentType))
		}
	}

	if res.Payload == nil || !json.Valid(res.Body) {
		issues = append(issues, "Failed to parse response body as JSON")
		return issues
	}

	if res.Payload.Code != 1 {
		issues = append(issues, fmt.Sprintf("API returned non-success code: %d", res.Payload.Code))
	}
	return issues
}
