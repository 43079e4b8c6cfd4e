package helper

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// QueryKey normalizes a question (trim, lower case) and returns its md5 hex digest.
// Questions differing only in case or surrounding whitespace share a key.
func QueryKey(question string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(question))))
	return hex.EncodeToString(sum[:])
}

// Truncate returns at most max runes of s
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
