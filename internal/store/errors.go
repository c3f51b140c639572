package store

import "errors"

var (
	ErrNotFound     = errors.New("birthday record not found")
	ErrInvalidOwner = errors.New("owner id is required")
)
