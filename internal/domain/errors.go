package domain

import "errors"

var (
	ErrWSDisconnect         = errors.New("websocket disconnected")
	ErrParse                = errors.New("malformed message")
	ErrDecodeMismatch       = errors.New("calldata does not decode as target function")
	ErrValidation           = errors.New("invalid trade fields")
	ErrInsufficientBalance  = errors.New("insufficient collateral balance")
	ErrInsufficientPosition = errors.New("insufficient position size")
	ErrSubmission           = errors.New("order submission failed")
	ErrRateLimited          = errors.New("rate limited")
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
)
