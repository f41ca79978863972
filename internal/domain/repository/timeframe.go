package repository

import "strings"

// aliases maps broker and resampling spellings onto stored bar tables.
var aliases = map[string]Timeframe{
	"s1": TF1s, "1sec": TF1s,
	"m1": TF1m, "1min": TF1m, "1t": TF1m,
	"m5": TF5m, "5min": TF5m, "5t": TF5m,
}

// IsValidTimeframe returns true if tf is a stored bar resolution.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1s, TF1m, TF5m:
		return true
	default:
		return false
	}
}

// DefaultTimeframe is the resolution of the gold bar exports.
func DefaultTimeframe() Timeframe { return TF5m }

// NormalizeTimeframe resolves s, including aliases such as "M5" or "5min".
// Unknown values fall back to the default.
func NormalizeTimeframe(s string) Timeframe {
	key := strings.ToLower(strings.TrimSpace(s))
	if tf := Timeframe(key); IsValidTimeframe(tf) {
		return tf
	}
	if tf, ok := aliases[key]; ok {
		return tf
	}
	return DefaultTimeframe()
}
