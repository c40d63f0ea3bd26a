package cache

import "errors"

var (
	// ErrKeyNotFound is returned when a key is absent or has expired.
	// Expired entries behave exactly like absent ones.
	ErrKeyNotFound = errors.New("cache: key not found")

	// ErrValueTooLarge is returned by Set when the entry alone cannot fit
	// the byte budget even with every other entry evicted. The cache is
	// left untouched.
	ErrValueTooLarge = errors.New("cache: entry exceeds byte budget")

	// ErrInvalidLimit reports a negative budget or TTL, either in Options
	// or passed to ChangeMaxBytes/ChangeMaxItems.
	ErrInvalidLimit = errors.New("cache: limit must not be negative")

	// ErrNotSupported is returned by FromKeys and Copy.
	ErrNotSupported = errors.New("cache: operation not supported")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("cache: closed")

	// ErrNoLoader is returned by GetOrLoad when Options.Loader is nil.
	ErrNoLoader = errors.New("cache: no Loader provided")

	// ErrBadSnapshot is returned by Restore for streams that are not a
	// snapshot this version can read.
	ErrBadSnapshot = errors.New("cache: invalid snapshot")
)
