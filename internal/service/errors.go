package service

import "errors"

// Domain errors. Handlers translate these to HTTP status codes; anything else
// coming out of a service is an internal failure and surfaces as a generic 500.
var (
	ErrSelfFollow           = errors.New("cannot follow yourself")
	ErrUserNotFound         = errors.New("user not found")
	ErrAlreadyFollowing     = errors.New("already following this user")
	ErrNotFollowing         = errors.New("not following this user")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrMissingField         = errors.New("missing required field")
)
