package server

import "errors"

var (
	ErrLoginAlreadyExists = errors.New("login already exists")
	ErrNoUserWasFound     = errors.New("no user was found")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrTokenIsExpired     = errors.New("token is expired")

	ErrEmptyAuthorizationHeader = errors.New("empty authorization header")
)
