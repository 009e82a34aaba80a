// Package position generates opaque, lexicographically sortable string keys
// used to order sibling nodes without renumbering. Keys are base-62 digit
// strings; a key strictly between any two existing keys always exists, so
// inserts never rewrite neighbors.
package position

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

const digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// AtEnd returns a key sorting strictly after last. Pass "" for an empty list.
// Chaining the previous result as the new last produces a strictly increasing
// sequence, which is how batch appends thread positions forward.
func AtEnd(last string) string {
	key, err := midpoint(last, "")
	if err != nil {
		return fallbackKey("zzzz")
	}
	return key
}

// AtStart returns a key sorting strictly before first. Pass "" for an empty list.
func AtStart(first string) string {
	key, err := midpoint("", first)
	if err != nil {
		return fallbackKey("0000")
	}
	return key
}

// Between returns a key strictly between before and after. Either bound may be
// "" meaning unbounded on that side.
func Between(before, after string) string {
	key, err := midpoint(before, after)
	if err != nil {
		if after == "" {
			return fallbackKey("zzzz")
		}
		return fallbackKey("0000")
	}
	return key
}

// midpoint validates both keys and returns a key strictly between them.
// Malformed stored keys (corrupt characters, trailing minimum digit, inverted
// bounds) surface as an error so callers can synthesize a key instead of
// failing the whole insert.
func midpoint(a, b string) (string, error) {
	if err := validate(a); err != nil {
		return "", err
	}
	if err := validate(b); err != nil {
		return "", err
	}
	if b != "" && a >= b {
		return "", fmt.Errorf("position keys out of order: %q >= %q", a, b)
	}
	return mid(a, b), nil
}

func validate(key string) error {
	if key == "" {
		return nil
	}
	for i := 0; i < len(key); i++ {
		if strings.IndexByte(digits, key[i]) < 0 {
			return fmt.Errorf("position key %q has invalid character %q", key, key[i])
		}
	}
	if key[len(key)-1] == digits[0] {
		return fmt.Errorf("position key %q has trailing minimum digit", key)
	}
	return nil
}

// mid assumes validated inputs with a < b (or b == "" for no upper bound).
func mid(a, b string) string {
	if b != "" {
		// Strip the common prefix, treating a as padded with minimum digits.
		// Because valid keys never end in the minimum digit and a < b, the
		// mismatch always lands before b runs out.
		n := 0
		for n < len(b) && digitAt(a, n) == b[n] {
			n++
		}
		if n > 0 {
			return b[:n] + mid(tail(a, n), b[n:])
		}
	}

	digitA := 0
	if a != "" {
		digitA = strings.IndexByte(digits, a[0])
	}
	digitB := len(digits)
	if b != "" {
		digitB = strings.IndexByte(digits, b[0])
	}

	if digitB-digitA > 1 {
		return string(digits[(digitA+digitB)/2])
	}

	// First digits are consecutive.
	if len(b) > 1 {
		return b[:1]
	}
	return string(digits[digitA]) + mid(tail(a, 1), "")
}

func digitAt(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return digits[0]
}

func tail(s string, n int) string {
	if n >= len(s) {
		return ""
	}
	return s[n:]
}

// fallbackKey synthesizes a sortable key from a high- or low-sorting prefix
// plus a monotonic timestamp and a random suffix. Ordering degrades to
// best-effort but the caller never sees an error.
func fallbackKey(prefix string) string {
	ts := strconv.FormatInt(time.Now().UnixNano(), 36)
	suffix := strconv.FormatInt(rand.Int63n(46656), 36) // 3 base-36 chars
	return prefix + ts + suffix
}
