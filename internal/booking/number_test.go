package booking

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateNumber(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	n := GenerateNumber(now)

	if !strings.HasPrefix(n, "BK") {
		t.Fatalf("expected BK prefix, got %q", n)
	}
	if n != strings.ToUpper(n) {
		t.Fatalf("expected uppercase number, got %q", n)
	}
	if len(n) <= 2+numberSuffixLen {
		t.Fatalf("number too short: %q", n)
	}

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		v := GenerateNumber(now)
		if seen[v] {
			t.Fatalf("random suffix repeated within 100 draws: %q", v)
		}
		seen[v] = true
	}
}
