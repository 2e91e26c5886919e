// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"errors"
	"math"
	"strconv"
)

// Errors returned by the parsers below.
var (
	ErrNotInteger = errors.New("not an integer")
	ErrNegative   = errors.New("must not be negative")
	ErrOutOfRange = errors.New("out of range")
)

// ParseInt32 parses s as a base-10 signed 32-bit integer and widens it.
// Path identifiers are 32-bit on the wire.
func ParseInt32(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		var ne *strconv.NumError
		if errors.As(err, &ne) && errors.Is(ne.Err, strconv.ErrRange) {
			return 0, ErrOutOfRange
		}
		return 0, ErrNotInteger
	}
	return n, nil
}

// ParseOptionalCursor parses an optional non-negative query value such as
// from_id or limit. An empty string yields nil; values above MaxInt32 are
// rejected like any other out-of-range input.
//
// Example:
//
//	v, _ := utils.ParseOptionalCursor("")   // nil
//	v, _ = utils.ParseOptionalCursor("5")   // &5
//	_, err := utils.ParseOptionalCursor("-1") // ErrNegative
func ParseOptionalCursor(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		var ne *strconv.NumError
		if errors.As(err, &ne) && errors.Is(ne.Err, strconv.ErrRange) {
			return nil, ErrOutOfRange
		}
		return nil, ErrNotInteger
	}
	if n < 0 {
		return nil, ErrNegative
	}
	if n > math.MaxInt32 {
		return nil, ErrOutOfRange
	}
	return &n, nil
}
