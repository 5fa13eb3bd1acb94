package wizard

import (
	"errors"
	"fmt"
)

var (
	ErrPlatform          = errors.New("platform request failed")
	ErrUploadInProgress  = errors.New("an upload is already running for this session")
	ErrUnsupportedAction = errors.New("action cannot be dispatched directly")
	ErrCatalogLoading    = errors.New("fields for the selected object are still loading")
	ErrFileTooLarge      = errors.New("file exceeds the upload size limit")
	ErrUnknownUploadMode = errors.New("upload mode must be mapping or existing")
)

// ValidationError is a rejected user action. The session is unchanged.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &ValidationError{Err: err}
}

func platformError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPlatform, op, err)
}
