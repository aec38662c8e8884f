package user

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/pkg/errors"
)

// DefaultResetTokenTimeout is how long a password reset code stays valid.
const DefaultResetTokenTimeout = 900 * time.Second

const tokenBytes = 24

var (
	ErrTokenInvalid = errors.New("invalid password reset code")
	ErrTokenExpired = errors.New("password reset code expired, request a new code")
)

// GenerateToken returns a random, URL-safe opaque token.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ResetTokens issues and checks single-use password reset codes.
type ResetTokens struct {
	store   ResetTokenStore
	timeout time.Duration
	NowFunc func() time.Time // mockable
}

func NewResetTokens(store ResetTokenStore, timeout time.Duration) *ResetTokens {
	if timeout <= 0 {
		timeout = DefaultResetTokenTimeout
	}
	return &ResetTokens{store: store, timeout: timeout, NowFunc: time.Now}
}

func (rt *ResetTokens) Timeout() time.Duration { return rt.timeout }

// Issue creates a new code for userID.
func (rt *ResetTokens) Issue(userID string) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	rt.store.Put(token, ResetToken{
		Token:     token,
		UserID:    userID,
		CreatedAt: rt.NowFunc().UTC(),
	})
	return token, nil
}

// Validate returns the ID of the User owning token.
// An expired token is removed from the store.
func (rt *ResetTokens) Validate(token string) (string, error) {
	if token == "" {
		return "", ErrTokenInvalid
	}
	entry, ok := rt.store.Get(token)
	if !ok {
		return "", ErrTokenInvalid
	}
	if rt.NowFunc().UTC().Sub(entry.CreatedAt) > rt.timeout {
		rt.store.Delete(token)
		return "", ErrTokenExpired
	}
	return entry.UserID, nil
}

// Consume removes token once it has been used.
func (rt *ResetTokens) Consume(token string) {
	rt.store.Delete(token)
}
