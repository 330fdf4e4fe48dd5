package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseIntegral converts a numeric string that may be written as a decimal ("25", "25.0",
// "2.5e1") to an int. Fractional or out-of-range values are rejected.
func ParseIntegral(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}
