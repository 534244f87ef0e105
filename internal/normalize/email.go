// Package normalize canonicalizes raw field values before similarity scoring.
// All normalizers are pure and deterministic: two values normalizing to the
// same string are treated as identical.
package normalize

import "strings"

// Providers whose local parts ignore dots and "+tag" aliases.
var aliasFoldingProviders = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
}

// Email canonicalizes an email address for comparison: lower-case, trimmed,
// with provider-aware local-part folding (dot and plus aliasing stripped for
// providers known to ignore them). Returns "" for empty input. If the value
// does not look like an address the lower-cased, trimmed form is returned
// as a best-effort fallback.
func Email(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		// Not a usable address; fall back to the plain form.
		return s
	}

	local, domain := s[:at], s[at+1:]
	if aliasFoldingProviders[domain] {
		if plus := strings.Index(local, "+"); plus >= 0 {
			local = local[:plus]
		}
		local = strings.ReplaceAll(local, ".", "")
		if local == "" {
			return s
		}
	}

	return local + "@" + domain
}
