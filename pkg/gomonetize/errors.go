package gomonetize

import "errors"

var (
	// ErrKeyNotFound is returned by Storage when a key has no value.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStorageUnavailable is returned when a component is constructed
	// without storage.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrPurchaseFailed wraps purchase/restore errors other than user
	// cancellation. Callers surface these through a single generic retry
	// prompt.
	ErrPurchaseFailed = errors.New("purchase failed")

	// ErrNoPackage is returned when a purchase is attempted with no package.
	ErrNoPackage = errors.New("no package selected")
)
