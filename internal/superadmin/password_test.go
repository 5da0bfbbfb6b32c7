package superadmin

import (
	"strings"
	"testing"
)

func TestHashAndVerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "pbkdf2-sha256$") {
		t.Fatalf("unexpected hash format: %s", hash)
	}
	if !VerifyPassword(hash, "correct horse battery staple") {
		t.Fatal("expected matching password to verify")
	}
	if VerifyPassword(hash, "correct horse battery stapl") {
		t.Fatal("expected near-miss password to fail")
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	h1, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected distinct hashes for the same password")
	}
	if !VerifyPassword(h1, "same-password") || !VerifyPassword(h2, "same-password") {
		t.Fatal("both hashes must verify")
	}
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestVerifyMalformedHashReturnsFalse(t *testing.T) {
	cases := []string{
		"",
		"not-a-hash",
		"bcrypt$10$abc$def",
		"pbkdf2-sha256$bogus$c2FsdA$a2V5",
		"pbkdf2-sha256$120000$!!!$a2V5",
		"pbkdf2-sha256$120000$c2FsdA$!!!",
		"pbkdf2-sha256$120000$c2FsdA",
		"pbkdf2-sha256$0$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
	}
	for _, encoded := range cases {
		if VerifyPassword(encoded, "anything") {
			t.Fatalf("malformed hash %q verified", encoded)
		}
	}
}

func TestVerifySupportsOlderIterationCounts(t *testing.T) {
	// A stored hash keeps verifying if the default iteration count is
	// raised later, because the count is part of the encoding.
	hash, err := HashPassword("rotate-me")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	parts := strings.Split(hash, "$")
	if len(parts) != 4 {
		t.Fatalf("unexpected encoding: %s", hash)
	}
	if parts[1] != "120000" {
		t.Fatalf("unexpected iteration count: %s", parts[1])
	}
}
