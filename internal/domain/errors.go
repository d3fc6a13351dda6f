package domain

import "errors"

var (
	// ErrTimeSourceUnavailable covers transport failures and non-2xx replies
	// from every time source instance that was tried.
	ErrTimeSourceUnavailable = errors.New("time source unavailable")

	// ErrCircuitOpen means no instance was eligible: each one was circuit-open
	// or throttled.
	ErrCircuitOpen = errors.New("time source circuit open")

	// ErrTimestampDecode means the payload was not a JSON object.
	ErrTimestampDecode = errors.New("invalid timestamp payload")

	ErrPoolStopped = errors.New("fetch pool stopped")
)
