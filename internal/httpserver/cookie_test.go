package httpserver

import "testing"

func TestSignAndVerifySessionCookie(t *testing.T) {
	const secret = "0123456789abcdef"
	const id = "abc123"

	value := signSessionID(id, secret)

	got, ok := verifySessionCookie(value, secret)
	if !ok {
		t.Fatal("signed cookie did not verify")
	}
	if got != id {
		t.Errorf("verified ID = %q, want %q", got, id)
	}
}

func TestVerifySessionCookieRejects(t *testing.T) {
	const secret = "0123456789abcdef"
	value := signSessionID("abc123", secret)

	tests := []struct {
		name  string
		value string
	}{
		{"empty value", ""},
		{"no separator", "abc123"},
		{"empty id", "." + value},
		{"bad signature hex", "abc123.zzzz"},
		{"wrong signature", "abc123.deadbeef"},
		{"tampered id", "Xbc123" + value[6:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := verifySessionCookie(tt.value, secret); ok {
				t.Errorf("verifySessionCookie(%q) accepted, want rejection", tt.value)
			}
		})
	}

	// A different key must not verify either.
	if _, ok := verifySessionCookie(value, "another-secret-key"); ok {
		t.Error("cookie verified under a different secret")
	}
}

func TestSafeReturnTo(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/app", "/app"},
		{"/app?tab=1", "/app?tab=1"},
		{"https://evil.example.com", ""},
		{"//evil.example.com", ""},
		{"app", ""},
	}

	for _, tt := range tests {
		if got := safeReturnTo(tt.in); got != tt.want {
			t.Errorf("safeReturnTo(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
