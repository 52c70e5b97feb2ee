package models

import "errors"

var (
	// ErrFeedUnavailable is returned when a feed cannot be fetched or parsed.
	ErrFeedUnavailable = errors.New("feed unavailable")
	// ErrContentFetchFailed marks a failed extended-content fetch.
	ErrContentFetchFailed = errors.New("content fetch failed")
	// ErrProviderError covers every remote analyzer failure.
	ErrProviderError = errors.New("analysis provider error")
	// ErrPersistFailed is returned when a cache write fails.
	ErrPersistFailed = errors.New("persist failed")
)
