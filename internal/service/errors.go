package service

import (
	"fmt"

	"github.com/jptrhost/pelican-dns/internal/models"
)

// ErrorKind classifies why a pipeline run failed.
type ErrorKind string

const (
	KindValidation        ErrorKind = "ValidationError"
	KindMissingCredential ErrorKind = "MissingCredential"
	KindZoneResolution    ErrorKind = "ZoneResolutionError"
	KindRecordCreation    ErrorKind = "RecordCreationError"
	KindPersistence       ErrorKind = "PersistenceError"
	KindUnauthorized      ErrorKind = "UnauthorizedError"
)

// ValidationError names the webhook field that was missing or malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid webhook payload: %s %s", e.Field, e.Reason)
}

// PipelineError is the error attached to a Failed run.
type PipelineError struct {
	Kind           ErrorKind
	State          models.PipelineState // last state reached before failing
	ProviderErrors []models.ProviderError
	Err            error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s after %s: %v", e.Kind, e.State, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
