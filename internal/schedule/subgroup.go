// Package schedule extracts outage intervals from the operator's published
// schedule page and normalizes subgroup keys.
package schedule

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidFormat reports user input that is not a "<group>.<subgroup>" key.
var ErrInvalidFormat = errors.New("invalid subgroup format")

// Accepts "1.1", "  2 . 3 " and the like.
var subgroupRe = regexp.MustCompile(`^\s*(\d+)\s*\.\s*(\d+)\s*$`)

// FormatSubgroup normalizes raw user input to the canonical "X.Y" form.
// Whitespace around the tokens and the dot is insignificant.
func FormatSubgroup(raw string) (string, error) {
	m := subgroupRe.FindStringSubmatch(raw)
	if m == nil {
		return "", ErrInvalidFormat
	}
	return m[1] + "." + m[2], nil
}

// GroupOf returns the group id part of a canonical subgroup key
// ("1.2" -> "1"). For input without a dot it returns the input itself.
func GroupOf(key string) string {
	if i := strings.IndexByte(key, '.'); i >= 0 {
		return key[:i]
	}
	return key
}
