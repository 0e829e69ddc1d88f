package otp

import "context"

// Store keeps at most one live challenge per mobile number.
type Store interface {
	// Put stores c, replacing any previous challenge for the same mobile and
	// resetting its attempt counter.
	Put(ctx context.Context, c Challenge) error
	// Get returns the challenge for mobile or ErrNotFound. Expired challenges
	// may still be returned; callers check Challenge.Expired.
	Get(ctx context.Context, mobile string) (Challenge, error)
	// IncrementAttempts records a failed verification and returns the new count.
	IncrementAttempts(ctx context.Context, mobile string) (int, error)
	// Delete removes the challenge and reports whether this call removed it.
	// Verification uses it as the claim so only one caller consumes a code.
	Delete(ctx context.Context, mobile string) (bool, error)
}
