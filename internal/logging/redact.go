package logging

import (
	"net/url"
	"regexp"
	"strings"
)

// Sensitive field names that should be redacted.
var sensitiveFields = []string{
	"password",
	"secret",
	"token",
	"access_token",
	"authorization",
	"auth",
	"credential",
}

// Query parameters stripped from logged URLs. Pagination tokens are opaque
// server state and can leak history positions.
var sensitiveQueryParams = []string{
	"access_token",
	"since",
	"from",
	"to",
}

// Patterns for secrets that should be redacted.
var secretPatterns = []*regexp.Regexp{
	// Matrix access tokens
	regexp.MustCompile(`(?i)(syt_[a-zA-Z0-9_-]{10,})`),
	regexp.MustCompile(`(?i)(mct_[a-zA-Z0-9_-]{10,})`),

	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9._-]{20,})`),

	// Generic long strings bound to a secret-ish key
	regexp.MustCompile(`(?i)(token|secret|password|auth)[=:]["']?([a-zA-Z0-9+/=_-]{20,})["']?`),
}

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// Redact replaces sensitive information in a string.
func Redact(s string) string {
	result := s
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// RedactURL strips credentials and pagination tokens from a URL so the
// request can be logged safely.
func RedactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return Redact(raw)
	}

	query := parsed.Query()
	for _, param := range sensitiveQueryParams {
		if query.Has(param) {
			query.Set(param, RedactedValue)
		}
	}
	parsed.RawQuery = query.Encode()
	parsed.User = nil

	return parsed.String()
}

// IsSensitiveField checks if a field name is considered sensitive.
func IsSensitiveField(name string) bool {
	lowerName := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lowerName, field) {
			return true
		}
	}
	return false
}
