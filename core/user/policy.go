package user

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// DefaultMaxFailedAttempts is the number of consecutive failed logins that locks an account.
const DefaultMaxFailedAttempts = 5

var (
	ErrAuthenticationFailed = errors.New("invalid credentials")
	ErrAccountLocked        = errors.New("account locked after too many failed login attempts, contact an administrator")
	ErrAccountDeactivated   = errors.New("account deactivated")
)

// AttemptsError is returned by a failed login that did not lock the account.
type AttemptsError struct {
	Remaining int
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("invalid credentials, %d attempt(s) remaining", e.Remaining)
}

// Outcome reports the effect of a failed login attempt.
type Outcome struct {
	Locked    bool
	Remaining int
}

// Err returns the error a caller should surface for this outcome.
func (o Outcome) Err() error {
	if o.Locked {
		return ErrAccountLocked
	}
	return &AttemptsError{Remaining: o.Remaining}
}

// EffectiveMaxAttempts returns maxAttempts, or DefaultMaxFailedAttempts when it is lower than 1.
func EffectiveMaxAttempts(maxAttempts int) int {
	if maxAttempts < 1 {
		return DefaultMaxFailedAttempts
	}
	return maxAttempts
}

// OutcomeOf reports where cred stands against the lockout threshold.
func OutcomeOf(cred Credential, maxAttempts int) Outcome {
	maxAttempts = EffectiveMaxAttempts(maxAttempts)
	if cred.IsLocked() || cred.FailedAttempts >= maxAttempts {
		return Outcome{Locked: true}
	}
	return Outcome{Remaining: maxAttempts - cred.FailedAttempts}
}

// RecordFailedAttempt increments the failed counter of cred and locks it once maxAttempts is reached.
// A maxAttempts lower than 1 falls back to DefaultMaxFailedAttempts.
// Repositories apply the same rule atomically (see Repository.RecordFailedAttempt).
func RecordFailedAttempt(cred Credential, now time.Time, maxAttempts int) (Credential, Outcome) {
	maxAttempts = EffectiveMaxAttempts(maxAttempts)
	if cred.IsLocked() {
		return cred, Outcome{Locked: true}
	}

	cred.FailedAttempts++
	if cred.FailedAttempts >= maxAttempts {
		cred.Status = StatusLocked
		cred.LockedAt = now.UTC()
	} else if cred.Status == "" {
		cred.Status = StatusActive
	}
	return cred, OutcomeOf(cred, maxAttempts)
}

// RecordSuccess resets the failed counter. It does not clear a lockout.
func RecordSuccess(cred Credential) Credential {
	cred.FailedAttempts = 0
	if cred.Status == "" {
		cred.Status = StatusActive
	}
	return cred
}
