package repository

import (
	"testing"
	"time"
)

func TestNormalizeTimeframe(t *testing.T) {
	cases := map[string]Timeframe{
		"":    TF5m,
		"1s":  TF1s,
		"1m":  TF1m,
		"5m":  TF5m,
		"15m": TF5m,
		"M5":  TF5m,
		"M1":  TF1m,
		"1min": TF1m,
		" 1S ": TF1s,
	}
	for in, want := range cases {
		if got := NormalizeTimeframe(in); got != want {
			t.Fatalf("NormalizeTimeframe(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTimeframeDuration(t *testing.T) {
	if TF5m.Duration() != 5*time.Minute {
		t.Fatalf("unexpected 5m duration %v", TF5m.Duration())
	}
	if TF1s.Duration() != time.Second {
		t.Fatalf("unexpected 1s duration %v", TF1s.Duration())
	}
}
