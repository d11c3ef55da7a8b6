// Package logsanitize provides helpers for sanitizing untrusted values
// before they reach structured log output.
package logsanitize

import "strings"

// maxFieldLen caps sanitized field values; query parameters and headers
// under attacker control should not be able to bloat log records.
const maxFieldLen = 256

// Sanitize replaces control characters in log field values with '_' to
// reduce the risk of log injection (CWE-117), and truncates oversized values.
//
// Replaced ranges: C0 controls 0x00-0x1F except tab, DEL 0x7F, and the C1
// controls 0x80-0x9F.
func Sanitize(s string) string {
	if len(s) > maxFieldLen {
		s = s[:maxFieldLen]
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return r
		case r < 0x20, r >= 0x7f && r <= 0x9f:
			return '_'
		default:
			return r
		}
	}, s)
}
