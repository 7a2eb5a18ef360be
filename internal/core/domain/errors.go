package domain

import "errors"

var ErrDriverNotFound = errors.New("driver not found")
var ErrInvalidUpdate = errors.New("invalid update")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrOperatorNotFound = errors.New("operator not found")
var ErrOperatorExists = errors.New("operator already exists")
var ErrForbidden = errors.New("access forbidden")
