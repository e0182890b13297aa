package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation marks a malformed organization chunk or request.
	ErrValidation = errors.New("validation failed")
	// ErrRoutingFailure means every model profile was exhausted and no
	// default destination is configured.
	ErrRoutingFailure = errors.New("routing failed")
	// ErrPathResolution means a destination path could not be materialized.
	ErrPathResolution = errors.New("path resolution failed")
	// ErrPersistence marks a datastore write failure during an organize pass.
	ErrPersistence = errors.New("persistence failed")
	// ErrRevert marks a failed history revert (missing, not owned, or write failed).
	ErrRevert = errors.New("revert failed")
	// ErrPassInProgress means an organize pass is already running for the owner.
	ErrPassInProgress = errors.New("organize pass already in progress")
)
