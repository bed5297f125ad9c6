package observability

import (
	"strings"
	"unicode"
)

// logSafe strips control characters and caps the result at limit runes so user-supplied values
// cannot split or bloat a log entry. A non-positive limit means 256.
func logSafe(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	var b strings.Builder
	n := 0
	for _, r := range value {
		if n == limit {
			break
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// SanitizeRoute cleans a route pattern for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return logSafe(route, 180)
}

// SanitizeMethod upper-cases and bounds an HTTP method.
func SanitizeMethod(method string) string {
	return strings.ToUpper(logSafe(method, 10))
}

// SanitizeActor cleans a staff username for logging.
func SanitizeActor(username string) string {
	return logSafe(strings.TrimSpace(username), 64)
}
