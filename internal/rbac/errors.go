package rbac

import "errors"

var (
	ErrNotFound      = errors.New("rbac: not found")
	ErrAlreadyExists = errors.New("rbac: already exists")
	ErrInvalidInput  = errors.New("rbac: invalid input")
	ErrForbidden     = errors.New("rbac: forbidden")
	ErrConflict      = errors.New("rbac: resource conflict")
	ErrUnauthorized  = errors.New("rbac: unauthorized")
)
