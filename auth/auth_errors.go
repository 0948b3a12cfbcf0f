package auth

import "errors"

var (
	MissingFieldsErr    = errors.New("all fields are required")
	ReservedUsernameErr = errors.New("username is reserved")
	GuestProfileErr     = errors.New("guest sessions have no profile")
)
