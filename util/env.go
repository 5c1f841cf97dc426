package util

import (
	"os"
	"strings"
)

// GetEnvDefault is a convenience function for handling env vars.
func GetEnvDefault(key, defVal string) string {
	val, ex := os.LookupEnv(key)
	if !ex {
		return defVal
	}
	return val
}

// IsEmpty checks if a string is empty or contains only whitespace.
func IsEmpty(s string) bool {
	return len(strings.TrimSpace(s)) == 0
}
