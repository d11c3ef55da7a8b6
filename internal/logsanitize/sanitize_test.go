package logsanitize

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain string", "hello world", "hello world"},
		{"newline injection", "line1\nlevel=ERROR forged", "line1_level=ERROR forged"},
		{"carriage return", "a\rb", "a_b"},
		{"tab is kept", "a\tb", "a\tb"},
		{"escape sequence", "a\x1b[31mred", "a_[31mred"},
		{"del", "a\x7fb", "a_b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeTruncates(t *testing.T) {
	long := strings.Repeat("x", 1000)
	if got := Sanitize(long); len(got) != maxFieldLen {
		t.Errorf("sanitized length = %d, want %d", len(got), maxFieldLen)
	}
}
