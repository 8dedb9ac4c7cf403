// Package config loads tunables fail-open: a malformed or out-of-range value
// falls back to its default and produces a warning instead of an error.
//
// Parsing is delegated to the strict getters in pkg/config; this package adds
// the fallback and the validation on top.
package config

import (
	"errors"
	"fmt"
	"time"

	env "shein-verse-bot/pkg/config"
)

// Result is the outcome of loading one value.
type Result[T any] struct {
	Value T

	// Warning explains the fallback. Empty when FallbackApplied is false.
	Warning         string
	FallbackApplied bool
}

// Load reads key with parse, then checks it with validate (which may be nil).
// An unset key yields def without a warning.
//
// Example:
//
//	r := Load("GRACE_PERIOD_CYCLES", 3, env.GetEnvInt, func(v int) error {
//	    return ValidateIntRange(v, 1, 1000)
//	})
//	grace := r.Value
func Load[T any](key string, def T, parse func(string, T) (T, error), validate func(T) error) Result[T] {
	if env.GetEnvString(key, "") == "" {
		return Result[T]{Value: def}
	}
	value, err := parse(key, def)
	if err != nil {
		var envErr *env.EnvError
		raw := ""
		if errors.As(err, &envErr) {
			raw = envErr.Value
			err = envErr.Err
		}
		return fallback(key, raw, def, err)
	}
	if validate != nil {
		if err := validate(value); err != nil {
			return fallback(key, fmt.Sprint(value), def, err)
		}
	}
	return Result[T]{Value: value}
}

func fallback[T any](key, raw string, def T, err error) Result[T] {
	return Result[T]{
		Value:           def,
		Warning:         fmt.Sprintf("invalid %s=%q: %v, falling back to default %v", key, raw, err, def),
		FallbackApplied: true,
	}
}

// LoadString loads a string. Surrounding whitespace is trimmed.
func LoadString(key, def string, validate func(string) error) Result[string] {
	return Load(key, def, func(k, d string) (string, error) { return env.GetEnvString(k, d), nil }, validate)
}

// LoadInt loads a base-10 integer.
func LoadInt(key string, def int, validate func(int) error) Result[int] {
	return Load(key, def, env.GetEnvInt, validate)
}

// LoadBool loads a boolean. yes/no and on/off are accepted besides the
// strconv.ParseBool forms.
func LoadBool(key string, def bool) Result[bool] {
	return Load(key, def, env.GetEnvBool, nil)
}

// LoadDuration loads a duration such as "45s" or "2m". A bare integer is seconds.
func LoadDuration(key string, def time.Duration, validate func(time.Duration) error) Result[time.Duration] {
	return Load(key, def, env.GetEnvDuration, validate)
}
