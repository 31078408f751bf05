// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package xcomm

import (
	"errors"
	"fmt"
)

// Error codes returned by the messaging components. The codes are stable and
// travel over the API so that remote callers can rebuild the error kind.
const (
	CodeUnknown int32 = iota
	CodeUnauthorized
	CodeStaleBlock
	CodeHashMismatch
	CodeNotCommitted
	CodeAlreadyDelivered
	CodeInsufficientFee
	CodeUnknownPeer
	CodeInvalidMessage
	CodeConsumerFailed
)

// Error represents a messaging error
type Error struct {
	Code    int32
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("xcomm error %d: %s", e.Code, e.Message)
}

var (
	ErrUnauthorized     = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrStaleBlock       = &Error{Code: CodeStaleBlock, Message: "stale block"}
	ErrHashMismatch     = &Error{Code: CodeHashMismatch, Message: "hash mismatch"}
	ErrNotCommitted     = &Error{Code: CodeNotCommitted, Message: "not committed"}
	ErrAlreadyDelivered = &Error{Code: CodeAlreadyDelivered, Message: "already delivered"}
	ErrInsufficientFee  = &Error{Code: CodeInsufficientFee, Message: "insufficient fee"}
	ErrUnknownPeer      = &Error{Code: CodeUnknownPeer, Message: "unknown peer"}
	ErrInvalidMessage   = &Error{Code: CodeInvalidMessage, Message: "invalid message"}
	ErrConsumerFailed   = &Error{Code: CodeConsumerFailed, Message: "consumer failed"}

	knownErrors = []*Error{
		ErrUnauthorized,
		ErrStaleBlock,
		ErrHashMismatch,
		ErrNotCommitted,
		ErrAlreadyDelivered,
		ErrInsufficientFee,
		ErrUnknownPeer,
		ErrInvalidMessage,
		ErrConsumerFailed,
	}
)

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) int32 {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// ErrorFromCode returns the sentinel registered for code, or nil if the code
// is not known.
func ErrorFromCode(code int32) *Error {
	for _, e := range knownErrors {
		if e.Code == code {
			return e
		}
	}
	return nil
}
