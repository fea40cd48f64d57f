package reliability

import "strings"

// FailureClass buckets upstream AI errors for user-facing messaging.
type FailureClass string

const (
	FailureRateLimit FailureClass = "rate_limit"
	FailureQuota     FailureClass = "quota"
	FailureConfig    FailureClass = "config"
	FailureUpstream  FailureClass = "upstream"
	FailureGeneric   FailureClass = "generic"
)

// ClassifyErrorText maps free-text upstream error messages onto a failure
// class by substring matching. The providers do not guarantee structured
// errors, so this table is coupled to their current wording on purpose;
// changing the substrings changes observable behavior.
func ClassifyErrorText(msg string) FailureClass {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429"):
		return FailureRateLimit
	case strings.Contains(lower, "quota"):
		return FailureQuota
	case strings.Contains(lower, "api key") || strings.Contains(lower, "invalid key") || strings.Contains(lower, "401"):
		return FailureConfig
	case strings.Contains(lower, "non-2xx") || strings.Contains(lower, "500"):
		return FailureUpstream
	default:
		return FailureGeneric
	}
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
