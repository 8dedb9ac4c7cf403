// Package config reads typed values from environment variables.
//
// Unlike the fail-open loaders in internal/pkg/config, these helpers report
// malformed values as errors. They are meant for settings the process cannot
// run without, such as credentials and endpoints.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvError describes an environment variable whose value could not be parsed.
type EnvError struct {
	Key   string
	Value string
	Err   error
}

func (e *EnvError) Error() string {
	return fmt.Sprintf("%s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *EnvError) Unwrap() error { return e.Err }

// GetEnvString returns the trimmed value of key, or defaultValue when unset or blank.
//
// Example:
//
//	base := GetEnvString("CATALOG_BASE_URL", "https://www.sheinindia.in")
func GetEnvString(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvInt parses key as a base-10 int.
func GetEnvInt(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue, &EnvError{Key: key, Value: raw, Err: fmt.Errorf("not an integer")}
	}
	return value, nil
}

// GetEnvInt64 parses key as a base-10 int64. Telegram chat ids need the full range.
func GetEnvInt64(key string, defaultValue int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return defaultValue, &EnvError{Key: key, Value: raw, Err: fmt.Errorf("not an integer")}
	}
	return value, nil
}

// GetEnvBool accepts the values strconv.ParseBool does, plus yes/no and on/off.
func GetEnvBool(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	switch strings.ToLower(raw) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue, &EnvError{Key: key, Value: raw, Err: fmt.Errorf("not a boolean")}
	}
	return value, nil
}

// GetEnvDuration parses key with time.ParseDuration. A bare integer is read as seconds.
func GetEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue, &EnvError{Key: key, Value: raw, Err: fmt.Errorf("not a duration")}
	}
	return value, nil
}

// GetEnvStringList splits a comma-separated value, trimming and dropping empty parts.
//
// Example:
//
//	// CATALOG_STRATEGIES="api, html"
//	GetEnvStringList("CATALOG_STRATEGIES", nil) // ["api", "html"]
func GetEnvStringList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return defaultValue
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
