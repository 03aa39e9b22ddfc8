package core

// pattern.go translates client date patterns into strftime patterns.
//
// Clients describe their dates with a small token language:
//
//	YYYY  four-digit year        -> %Y
//	YY    two-digit year         -> %y
//	MM    zero-padded month      -> %m
//	DD    zero-padded day        -> %d
//	M     month without padding  -> %-m
//	D     day without padding    -> %-d
//
// Any pattern that already contains a '%' is treated as native strftime and
// passed through untouched. Parsing goes through go-strftime, which accepts
// one or two digits for %m and %d regardless of the padding flag.

import (
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

// patternTokens is ordered so longer tokens match before their prefixes.
var patternTokens = []struct {
	token string
	spec  string
}{
	{"YYYY", "%Y"},
	{"YY", "%y"},
	{"MM", "%m"},
	{"DD", "%d"},
	{"M", "%-m"},
	{"D", "%-d"},
}

// NormalizePattern converts a client date pattern to strftime syntax.
func NormalizePattern(pattern string) string {
	if strings.Contains(pattern, "%") {
		return pattern
	}

	var b strings.Builder
	b.Grow(len(pattern) + 8)

	for i := 0; i < len(pattern); {
		matched := false
		for _, t := range patternTokens {
			if strings.HasPrefix(pattern[i:], t.token) {
				b.WriteString(t.spec)
				i += len(t.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}

// NormalizePatterns converts every pattern, preserving order.
func NormalizePatterns(patterns []string) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = NormalizePattern(p)
	}
	return out
}

// ParseDate tries each pattern in order and returns the first successful parse.
// Patterns may be in either the token language or strftime syntax.
func ParseDate(value string, patterns []string) (time.Time, bool) {
	for _, p := range patterns {
		t, err := strftime.Parse(NormalizePattern(p), value)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders t with a pattern in either syntax.
func FormatDate(pattern string, t time.Time) string {
	return strftime.Format(NormalizePattern(pattern), t)
}

// datetimeLayouts are always accepted for datetime fields in addition to
// the client's patterns.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// isoDatePattern is always accepted for date fields.
const isoDatePattern = "%Y-%m-%d"

func parseDatetime(value string) bool {
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}
