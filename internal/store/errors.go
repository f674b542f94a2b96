package store

import "errors"

var (
	ErrNotFound  = errors.New("record not found")
	ErrMissingID = errors.New("record has no id")
)
