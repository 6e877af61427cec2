// Package redact scrubs sensitive material from text before it reaches logs
// or API error responses. It targets the things that leak through error
// messages in practice: connection strings, credentials, tokens, key
// material, email addresses, file paths and raw SQL.
package redact

import "regexp"

// Placeholders substituted for redacted content. Tests and log assertions
// match on these exact strings.
const (
	PlaceholderCredential = "[REDACTED_CREDENTIAL]"
	PlaceholderKey        = "[REDACTED_KEY]"
	PlaceholderJWT        = "[REDACTED_JWT]"
	PlaceholderEmail      = "[REDACTED_EMAIL]"
	PlaceholderSQL        = "[REDACTED_SQL]"
	PlaceholderPath       = "[REDACTED_PATH]"
)

// rule pairs a compiled pattern with its replacement placeholder.
type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// rules are applied in order. Connection strings must run before the
// credential and email patterns so a URL is consumed whole instead of
// being shredded piecemeal, and paths run last so earlier placeholders
// are never re-matched.
var rules = []rule{
	// Connection URLs carrying inline credentials, e.g. postgres://user:pw@host.
	{regexp.MustCompile(`(?i)(postgres|postgresql|mysql|mongodb|redis|amqp)://[^@\s]+@`), PlaceholderCredential},
	// password=..., pwd: '...' style fragments.
	{regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]['"]?)[^'"&\s]{3,}`), PlaceholderCredential},
	// API keys, secrets and bearer material in key=value form.
	{regexp.MustCompile(`(?i)(api[_-]?key|secret|token|authorization)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`), PlaceholderKey},
	// AWS access key IDs.
	{regexp.MustCompile(`\b(AKIA|ASIA|AGPA|AIDA|AROA|ANPA|ANVA)[A-Z0-9]{16}\b`), PlaceholderKey},
	// Bare JWTs: three base64url segments, header starting with eyJ.
	{regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`), PlaceholderJWT},
	// Email addresses.
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), PlaceholderEmail},
	// SQL statements that would reveal schema details.
	{regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)\b[\s\w,*()='"$]+\b(FROM|INTO|SET|TABLE|WHERE)\b[\s\w,*()='"$.]*`), PlaceholderSQL},
	// Absolute unix paths with at least two segments.
	{regexp.MustCompile(`(/[\w.-]+){2,}`), PlaceholderPath},
	// Windows paths.
	{regexp.MustCompile(`[A-Za-z]:\\[\w\\.-]+`), PlaceholderPath},
}

// String returns the input with every sensitive fragment replaced by its
// placeholder. Safe input comes back unchanged.
func String(input string) string {
	if input == "" {
		return input
	}
	out := input
	for _, r := range rules {
		out = r.pattern.ReplaceAllString(out, r.placeholder)
	}
	return out
}

// Error redacts an error's message. A nil error redacts to the empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
