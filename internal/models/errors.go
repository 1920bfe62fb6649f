package models

import "github.com/pkg/errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidTransition: the current status does not allow the requested target.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrPreconditionFailed: the transition is legal but a required field is missing.
	ErrPreconditionFailed = errors.New("precondition failed")

	ErrInvalidInput = errors.New("invalid input")
)
