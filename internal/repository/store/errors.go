package store

import "errors"

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrMovieNotFound           = errors.New("movie not found")
	ErrAccessCodeNotFound      = errors.New("access code not found")
	ErrAccessCodeAlreadyExists = errors.New("access code already exists")
)
