package env

import "testing"

func TestGetPrefersFirstSetKey(t *testing.T) {
	t.Setenv("CAMPUS_TEST_A", "")
	t.Setenv("CAMPUS_TEST_B", " b ")
	t.Setenv("CAMPUS_TEST_C", "c")

	if got := Get("fallback", "CAMPUS_TEST_A", "CAMPUS_TEST_B", "CAMPUS_TEST_C"); got != "b" {
		t.Fatalf("expected b, got %q", got)
	}
	if got := Get("fallback", "CAMPUS_TEST_A"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
