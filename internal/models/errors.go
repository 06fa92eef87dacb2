package models

import "errors"

// ErrInvalidInput marks request-level validation failures. The HTTP layer
// maps anything wrapping it to a client-fault response.
var ErrInvalidInput = errors.New("invalid input")
