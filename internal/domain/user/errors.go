package user

import "errors"

var (
	ErrMissingIdentity         = errors.New("missing or invalid identity")
	ErrAdminAccessRequired     = errors.New("admin access required")
	ErrManagerAccessRequired   = errors.New("manager access required")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrNotOwnEmployeeRecord    = errors.New("employees may only act on their own records")
)
