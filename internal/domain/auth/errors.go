package auth

import "errors"

// ErrEmailExists is returned by repositories on a duplicate email address.
var ErrEmailExists = errors.New("email already exists")
