// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pbaas

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrNotFound indicates the requested chain, notarization or candidate
	// does not exist. It is rendered as an empty result, not as a failure.
	ErrNotFound ErrorCode = iota

	// ErrInvalidParameter indicates a malformed or out of range caller input.
	ErrInvalidParameter

	// ErrTransactionUnavailable indicates a transaction referenced by an
	// index entry could not be loaded.
	ErrTransactionUnavailable

	// ErrNoRoot indicates the notarization set has neither a chain
	// definition nor a resolvable confirmed root.
	ErrNoRoot

	// ErrAmbiguousIndexMatch indicates more than one address index entry
	// matched a single notarization transaction.
	ErrAmbiguousIndexMatch

	// ErrIndexCorruption indicates the address index is inconsistent with
	// the transaction it should describe.
	ErrIndexCorruption

	// ErrPowerTie indicates two distinct forks compare with equal power.
	ErrPowerTie

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

var errorCodeStrings = map[ErrorCode]string{
	ErrNotFound:               "ErrNotFound",
	ErrInvalidParameter:       "ErrInvalidParameter",
	ErrTransactionUnavailable: "ErrTransactionUnavailable",
	ErrNoRoot:                 "ErrNoRoot",
	ErrAmbiguousIndexMatch:    "ErrAmbiguousIndexMatch",
	ErrIndexCorruption:        "ErrIndexCorruption",
	ErrPowerTie:               "ErrPowerTie",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error identifies an error related to chain definitions, notarizations and
// cross-chain proofs. The caller can use type assertions (or IsErrorCode) to
// determine the specific kind of failure.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error.
func (e Error) Unwrap() error { return e.Err }

// MakeError creates an Error given a set of arguments.
func MakeError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsErrorCode returns whether err is, or wraps, an Error with the given code.
func IsErrorCode(err error, c ErrorCode) bool {
	var e Error
	if errors.As(err, &e) {
		return e.ErrorCode == c
	}
	return false
}
