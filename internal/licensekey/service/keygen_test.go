package service

import (
	"regexp"
	"testing"
)

func TestGenerateKeyStringFormat(t *testing.T) {
	format := regexp.MustCompile(`^LIOS-[A-Z0-9]{5}-[A-Z0-9]{5}-[A-Z0-9]{5}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		key, err := generateKeyString("LIOS")
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !format.MatchString(key) {
			t.Fatalf("unexpected key format %q", key)
		}
		seen[key] = true
	}
	if len(seen) < 100 {
		t.Fatalf("expected 100 distinct keys, got %d", len(seen))
	}
}
