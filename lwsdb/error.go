// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package lwsdb

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific StoreError.
const (
	// ErrDatabase indicates an error with the underlying database.  When
	// this error code is set, the Err field of the StoreError will be
	// set to the underlying error returned from walletdb.
	ErrDatabase ErrorCode = iota

	// ErrData describes an error where data stored in the database is
	// incorrect.  This may be due to missing values or corruption and
	// is a programmer or operator error rather than a recoverable
	// condition.
	ErrData

	// ErrInput describes an invalid argument passed by the caller.
	ErrInput

	// ErrNoSuchAccount indicates the requested account address is not
	// in the database, or is hidden.
	ErrNoSuchAccount

	// ErrAccountExists indicates an attempt to create an account whose
	// address is already registered.
	ErrAccountExists

	// ErrDuplicateRequest indicates the address already has a pending
	// request of the same kind.
	ErrDuplicateRequest

	// ErrCreateQueueMax indicates the pending creation queue has hit
	// its configured cap.
	ErrCreateQueueMax

	// ErrBlockchainReorg indicates a conditional commit found the chain
	// tail no longer matches the suffix being committed.  The caller
	// recovers by resynchronizing; nothing was written.
	ErrBlockchainReorg

	// ErrBadBlockchain indicates the upstream chain diverges below the
	// stored tail and cannot be reconciled.
	ErrBadBlockchain

	// ErrSystemClockRange indicates the system clock is outside the
	// range representable by the storage format.
	ErrSystemClockRange
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDatabase:         "ErrDatabase",
	ErrData:             "ErrData",
	ErrInput:            "ErrInput",
	ErrNoSuchAccount:    "ErrNoSuchAccount",
	ErrAccountExists:    "ErrAccountExists",
	ErrDuplicateRequest: "ErrDuplicateRequest",
	ErrCreateQueueMax:   "ErrCreateQueueMax",
	ErrBlockchainReorg:  "ErrBlockchainReorg",
	ErrBadBlockchain:    "ErrBadBlockchain",
	ErrSystemClockRange: "ErrSystemClockRange",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// StoreError provides a single type for errors that can happen during
// store operation.
type StoreError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e StoreError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e StoreError) Unwrap() error {
	return e.Err
}

// storeError creates a StoreError given a set of arguments.
func storeError(c ErrorCode, desc string, err error) StoreError {
	return StoreError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a StoreError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	serr, ok := err.(StoreError)
	return ok && serr.ErrorCode == code
}
