package utils

import "testing"

func TestT_Fallback(t *testing.T) {
	if got := T("de", "email.results.cta"); got != "View my results" {
		t.Fatalf("fallback to en failed: %s", got)
	}
	if got := T("fr", "missing.key"); got != "missing.key" {
		t.Fatalf("unknown key should echo, got %s", got)
	}
}

func TestT_EveryKeyTranslated(t *testing.T) {
	for key := range translations["en"] {
		if _, ok := translations["fr"][key]; !ok {
			t.Errorf("fr lacks %q", key)
		}
	}
}
