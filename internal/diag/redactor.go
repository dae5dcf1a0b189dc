package diag

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// Redactor removes Plex credentials from config files and log lines
type Redactor struct {
	patterns []redactionPattern
}

type redactionPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// plexToken in YAML (key: value) or TOML (key = value)
var configToken = regexp.MustCompile(`(?im)^(\s*plexToken\s*[:=]\s*["']?)([^"'\s#]+)`)

// NewRedactor creates a redactor for the token forms plexsleep handles
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []redactionPattern{
			// token in a request URL
			{
				regex:       regexp.MustCompile(`(?i)(X-Plex-Token=)[^&\s"']+`),
				replacement: "${1}" + redacted,
			},
			// token sent as a header
			{
				regex:       regexp.MustCompile(`(?i)(X-Plex-Token:\s*)\S+`),
				replacement: "${1}" + redacted,
			},
		},
	}
}

// Redact applies all redaction patterns to the input text. Secret
// references ("secret:<name>") carry no credential and are kept.
func (r *Redactor) Redact(input string) string {
	result := configToken.ReplaceAllStringFunc(input, func(match string) string {
		parts := configToken.FindStringSubmatch(match)
		if strings.HasPrefix(parts[2], "secret:") {
			return match
		}
		return parts[1] + redacted
	})
	for _, pattern := range r.patterns {
		result = pattern.regex.ReplaceAllString(result, pattern.replacement)
	}
	return result
}
