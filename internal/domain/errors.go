package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrUnauthorizedChat  = errors.New("unauthorized chat")
	ErrMalformedCallback = errors.New("malformed callback data")
)
