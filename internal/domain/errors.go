package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrValidation      = errors.New("validation failed")
	ErrSignature       = errors.New("signature verification failed")
	ErrExternalService = errors.New("external service failure")
	ErrRender          = errors.New("generation failed")
	ErrVersionConflict = errors.New("version conflict")
	ErrDuplicateEvent  = errors.New("event already processed")
)
