package authn

import "errors"

var (
	// ErrTokenInvalid covers a missing, malformed, or bad-signature token.
	ErrTokenInvalid = errors.New("authn: invalid token")

	// ErrTokenExpired is returned when the token's exp claim has passed.
	ErrTokenExpired = errors.New("authn: token expired")
)
