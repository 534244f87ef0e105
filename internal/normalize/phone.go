package normalize

import "strings"

// minNationalDigits is the minimum number of digits that must remain after
// stripping a bare "31" country code for the strip to be considered safe.
// Dutch subscriber numbers are 9 digits after the trunk zero.
const minNationalDigits = 8

// Phone canonicalizes a phone number for comparison: strips formatting,
// removes a recognized country prefix (+31, 0031, or bare 31 when the
// remainder is long enough), and strips one leading national trunk zero.
// Returns "" if nothing usable remains.
func Phone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' || r == '+' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(s, "+31"):
		s = s[3:]
	case strings.HasPrefix(s, "0031"):
		s = s[4:]
	case strings.HasPrefix(s, "31") && len(s) >= 2+minNationalDigits:
		s = s[2:]
	default:
		// Unknown country prefix; drop a stray leading plus.
		s = strings.TrimPrefix(s, "+")
	}

	// National trunk zero.
	if len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}

	if s == "" {
		return ""
	}
	return s
}
