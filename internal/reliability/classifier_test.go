package reliability

import "testing"

func TestClassifyErrorText(t *testing.T) {
	cases := []struct {
		msg  string
		want FailureClass
	}{
		{"Rate limit exceeded, retry later", FailureRateLimit},
		{"status 429 too many requests", FailureRateLimit},
		{"You exceeded your current quota", FailureQuota},
		{"Incorrect API key provided", FailureConfig},
		{"invalid key", FailureConfig},
		{"unauthorized: 401", FailureConfig},
		{"upstream returned non-2xx status", FailureUpstream},
		{"internal error 500", FailureUpstream},
		{"something unexpected happened", FailureGeneric},
		{"", FailureGeneric},
	}
	for _, tc := range cases {
		if got := ClassifyErrorText(tc.msg); got != tc.want {
			t.Fatalf("ClassifyErrorText(%q) = %q, want %q", tc.msg, got, tc.want)
		}
	}
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{401, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		got := IsRetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}
