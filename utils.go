// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package xcomm

import (
	"errors"
	"math"
	"strings"
)

const (
	// KiB is 1024 bytes
	KiB = 1024

	// MaxMessageSize bounds the payload of a single outbound message
	MaxMessageSize = 64 * KiB
)

var (
	errMulOverflow = errors.New("multiplication would overflow")
	errAddOverflow = errors.New("addition would overflow")
)

// CheckMulDoesNotOverflow checks if a * b would overflow uint64
func CheckMulDoesNotOverflow(a, b uint64) error {
	if a == 0 || b == 0 {
		return nil
	}
	if a > math.MaxUint64/b {
		return errMulOverflow
	}
	return nil
}

// AddUint64 adds two uint64 values and returns an error if overflow
func AddUint64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, errAddOverflow
	}
	return a + b, nil
}

// SanitizeHexString removes the "0x" prefix from a hex string if it exists.
// Otherwise, returns the original string.
func SanitizeHexString(hex string) string {
	return strings.TrimPrefix(strings.TrimPrefix(hex, "0x"), "0X")
}
