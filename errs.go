package store

import "errors"

var (
	ErrConnection        = errors.New("connection error")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrPrecondition      = errors.New("precondition failed")
	ErrNotFound          = errors.New("document not found")
)
