// Package env reads process environment variables with defaults.
package env

import "os"

// Get returns the variable named by key, or fallback when it is unset
// or empty.
func Get(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
