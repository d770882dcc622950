package config

import (
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// lookup parses the trimmed value of key, keeping def when the variable is
// unset or does not parse.
func lookup[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	return lookup(key, def, func(s string) (int, error) { return cast.ToIntE(s) })
}

func getEnvAsBool(key string, def bool) bool {
	return lookup(key, def, func(s string) (bool, error) { return cast.ToBoolE(s) })
}

func getEnvAsFloat(key string, def float64) float64 {
	return lookup(key, def, func(s string) (float64, error) { return cast.ToFloat64E(s) })
}

// getEnvAsDuration accepts Go durations ("90s") and bare nanosecond counts.
func getEnvAsDuration(key string, def time.Duration) time.Duration {
	return lookup(key, def, func(s string) (time.Duration, error) { return cast.ToDurationE(s) })
}

func getEnvAsDecimal(key string, def decimal.Decimal) decimal.Decimal {
	return lookup(key, def, decimal.NewFromString)
}

// getEnvAsStringSlice splits on commas and whitespace. An empty list keeps
// the defaults.
func getEnvAsStringSlice(key string, def []string) []string {
	parts := lookup(key, nil, func(s string) ([]string, error) {
		return cast.ToStringSliceE(strings.ReplaceAll(s, ",", " "))
	})
	if len(parts) == 0 {
		return def
	}
	return parts
}
