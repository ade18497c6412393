package util

import "strings"

// SanitizePostgresText strips null bytes and invalid UTF-8 from evidence
// text before it is written to Postgres, which rejects both.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}
