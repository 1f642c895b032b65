package util

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// Find returns the first element of items satisfying predicate, or the zero
// value of T when none does.
func Find[T any](items []T, predicate func(T) bool) T {
	for _, item := range items {
		if predicate(item) {
			return item
		}
	}
	var zero T
	return zero
}

// Map applies fn to every element of items.
func Map[T any, U any](items []T, fn func(T) U) []U {
	out := make([]U, len(items))
	for i, item := range items {
		out[i] = fn(item)
	}
	return out
}

// DecodeHex decodes a hex string with or without a 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid hex string")
	}
	return b, nil
}
