package challenge

import "errors"

var (
	// ErrNotFound is returned when a pending registration id does not exist.
	ErrNotFound = errors.New("challenge: pending registration not found")
	// ErrExpired is returned by Verify when now() > ExpiresAt. The row is
	// deleted as part of returning this error so a fresh phase-1 can proceed.
	ErrExpired = errors.New("challenge: pending registration expired")
	// ErrVerificationFailed wraps a signature mismatch from the injected
	// Verifier.
	ErrVerificationFailed = errors.New("challenge: signature verification failed")
)
