package models

import "errors"

var (
	// ErrMalformed means the input could not be parsed at all.
	ErrMalformed = errors.New("malformed input")
	// ErrUnauthenticated means the request carries no valid subject.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrBadSignature means the token signature did not verify.
	ErrBadSignature = errors.New("bad token signature")
	// ErrTokenExpired means the token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenNotYetValid means the token was issued in the future beyond
	// the allowed clock skew.
	ErrTokenNotYetValid = errors.New("token not yet valid")
	// ErrInternal is an unexpected fault; details go to logs only.
	ErrInternal = errors.New("internal error")
)
