package config

import "errors"

var (
	ErrUnknownBackend     = errors.New("unknown local storage backend, expected sqlite or bolt")
	ErrBackoffCapTooSmall = errors.New("backoff cap must not be smaller than the initial backoff")
)
