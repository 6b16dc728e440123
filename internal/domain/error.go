package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("could not read database row")

	// Job pipeline errors
	ErrJobNotClaimable       = errors.New("job is no longer queued")
	ErrJobTimeout            = errors.New("job deadline exceeded")
	ErrPromptProfileMissing  = errors.New("prompt profile not found")
	ErrCurriculumNotResolved = errors.New("no curriculum resolvable for locale")
	ErrEmptyGeneration       = errors.New("generation returned empty text")
	ErrPromptTooLarge        = errors.New("prompt exceeds token budget")
	ErrBatchInProgress       = errors.New("another batch is in progress")
	ErrLockNotAcquired       = errors.New("lock not acquired")
)

// ErrorDetail is a single schema violation reported by the lesson validator.
type ErrorDetail struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationFailedError is returned when generated content stays invalid after repair.
type ValidationFailedError struct {
	Errors []ErrorDetail
}

func (e *ValidationFailedError) Error() string {
	if len(e.Errors) == 0 {
		return "lesson validation failed"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		parts = append(parts, d.Path+": "+d.Message)
	}
	return fmt.Sprintf("lesson validation failed after repair (%d errors): %s", len(e.Errors), strings.Join(parts, "; "))
}

// GenerationError marks a transport-level failure of the text generation backend.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Provider == "" {
		return "generation failed: " + e.Err.Error()
	}
	return e.Provider + " generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PersistenceError marks a failed store write; Op names the write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }
