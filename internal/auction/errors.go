package auction

import "errors"

// Errors returned by the external auction contract. All of them are local
// and recoverable: a rejected action never aborts the drive loop.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyStarted    = errors.New("auction already started")
	ErrNotStarted        = errors.New("auction not started")
	ErrInvalidParameters = errors.New("invalid auction parameters")
	ErrLocationConflict  = errors.New("auction is bound to another channel")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrAlreadyLocked     = errors.New("another captain holds the pause")
	ErrQuotaExhausted    = errors.New("pause quota exhausted")
	ErrNoCandidate       = errors.New("no candidate in progress")
)
