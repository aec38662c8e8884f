package user

import (
	"time"
)

// Session maps an authenticated User to its Role for the lifetime of a login.
type Session struct {
	Key       string    `json:"key"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// ResetToken is a single-use password reset code.
type ResetToken struct {
	Token     string
	UserID    string
	CreatedAt time.Time // UTC
}

type (
	SessionStore interface {
		Get(key string) (Session, bool)
		Put(key string, sess Session)
		Delete(key string)
	}

	ResetTokenStore interface {
		Get(token string) (ResetToken, bool)
		Put(token string, rt ResetToken)
		Delete(token string)
	}
)
