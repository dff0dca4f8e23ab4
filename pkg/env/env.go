package env

import (
	"os"
	"strings"
)

// Get returns the value of the environment variable, or fallback when the
// variable is unset or blank.
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}

// Bool reads a boolean-ish environment variable. Accepts 1/true/yes/on in any
// case; everything else (including unset) yields the fallback.
func Bool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
