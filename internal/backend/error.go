package backend

import "errors"

// Error definitions for the backend package.
var (
	ErrBackendNotFound   = errors.New("backend not found in registry")
	ErrAlreadyRegistered = errors.New("backend is already registered in the registry")
	ErrToolNotFound      = errors.New("export tool not found")
)
