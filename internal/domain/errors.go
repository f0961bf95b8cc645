package domain

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNoAccounts      = errors.New("no accounts registered")
	ErrRateLimited     = errors.New("rate limit reached")
	ErrAuthFailed      = errors.New("authentication failed")
)
