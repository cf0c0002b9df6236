package validate

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reID   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reName = regexp.MustCompile(`^[\p{L}\p{N} _'.,()&-]{1,100}$`)
)

// MaxQuantity bounds a single reservation request.
const MaxQuantity = 10000

// ID validates a simple resource identifier (product/reservation/user ids, uuids included).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// Name validates a displayable product name.
func Name(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reName.MatchString(s)
}

// Quantity accepts 1..MaxQuantity. Unlike a cart, a reservation is never
// clamped: a bad count is rejected.
func Quantity(n int) bool {
	return n > 0 && n <= MaxQuantity
}

// Stock parses a non-negative stock count from a form value.
func Stock(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > 1_000_000 {
		return 0, false
	}
	return n, true
}

// Bool parses an optional boolean query value; empty means unset.
func Bool(s string) (*bool, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, false
	}
	return &b, true
}
