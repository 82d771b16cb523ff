package tracker

import "errors"

var (
	// ErrNotFound covers both missing records and records owned by another
	// user; callers must not be able to distinguish the two.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyProcessing is returned when a processing trigger races an
	// in-flight extraction for the same receipt.
	ErrAlreadyProcessing = errors.New("receipt is already being processed")

	// ErrReceiptAttached is returned when accepting a receipt that already
	// belongs to an expense.
	ErrReceiptAttached = errors.New("receipt is already attached to an expense")

	// ErrReceiptNotReviewable is returned when accepting a receipt that has
	// not finished processing.
	ErrReceiptNotReviewable = errors.New("receipt has not finished processing")

	// ErrUnauthorized is returned by authenticators for requests without
	// valid credentials.
	ErrUnauthorized = errors.New("unauthorized")
)
