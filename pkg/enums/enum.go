package enums

import (
	"fmt"
	"strings"
)

func contains[T ~string](valid []T, value T) bool {
	for _, candidate := range valid {
		if candidate == value {
			return true
		}
	}
	return false
}

func parse[T ~string](kind string, valid []T, value string) (T, error) {
	normalized := T(strings.ToLower(strings.TrimSpace(value)))
	if contains(valid, normalized) {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}

// Values renders an enum slice for validation messages.
func Values[T ~string](valid []T) []string {
	out := make([]string, len(valid))
	for i, v := range valid {
		out[i] = string(v)
	}
	return out
}
