package domain

import "errors"

var (
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrStoreUnavailable    = errors.New("session store unavailable")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)
