package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Args is the reader- or writer-specific argument mapping supplied on the
// command line as key=value pairs.
type Args map[string]string

// ParseArgs converts key=value pairs into Args. Later keys override earlier ones.
func ParseArgs(pairs []string) (Args, error) {
	args := Args{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q: expected key=value", pair)
		}
		args[key] = strings.TrimSpace(value)
	}
	return args, nil
}

// String returns the value for key or fallback when absent or blank.
func (a Args) String(key, fallback string) string {
	if v, ok := a[key]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

// Required returns the value for key or an error naming the component.
func (a Args) Required(component, key string) (string, error) {
	v := strings.TrimSpace(a[key])
	if v == "" {
		return "", fmt.Errorf("%s: missing required argument %q", component, key)
	}
	return v, nil
}

// Bool parses key as a boolean, returning fallback when absent.
func (a Args) Bool(key string, fallback bool) (bool, error) {
	v, ok := a[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback, fmt.Errorf("argument %q: %w", key, err)
	}
	return b, nil
}

// Int parses key as an integer, returning fallback when absent.
func (a Args) Int(key string, fallback int) (int, error) {
	v, ok := a[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback, fmt.Errorf("argument %q: %w", key, err)
	}
	return n, nil
}

// With returns a copy of a with key set to value.
func (a Args) With(key, value string) Args {
	out := make(Args, len(a)+1)
	for k, v := range a {
		out[k] = v
	}
	out[key] = value
	return out
}

// Pairs renders the arguments as sorted key=value pairs.
func (a Args) Pairs() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+a[k])
	}
	return out
}
