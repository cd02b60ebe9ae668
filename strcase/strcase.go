// Package strcase converts identifiers between Go's exported-field naming
// convention and the snake_case convention column and table names use.
package strcase

import "strings"

// Snake converts a (typically Go exported-identifier-shaped) string such as
// "HostName" or "ID" into its snake_case form "host_name" / "id". Runs of
// uppercase letters are treated as a single word boundary, so "HTTPStatus"
// becomes "http_status" rather than "h_t_t_p_status".
func Snake(s string) string {
	if s == "" {
		return s
	}

	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		isUpper := r >= 'A' && r <= 'Z'
		if isUpper {
			prevLower := i > 0 && !(runes[i-1] >= 'A' && runes[i-1] <= 'Z')
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if i > 0 && (prevLower || nextLower) {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
