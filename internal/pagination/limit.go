package pagination

import (
	"strconv"
	"strings"
)

const (
	DefaultLimit = 20
	MinLimit     = 1
	MaxLimit     = 100
)

// ParseLimit reads the limit query parameter. Missing or non-numeric
// values give DefaultLimit; numbers are clamped to [MinLimit, MaxLimit].
func ParseLimit(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLimit
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return DefaultLimit
	}
	return ClampLimit(n)
}

func ClampLimit(n int) int {
	return min(max(n, MinLimit), MaxLimit)
}
