package domain

import "errors"

// ErrInvalidInput marks a request that cannot be processed as given.
var ErrInvalidInput = errors.New("invalid input")
