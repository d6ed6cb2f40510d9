package tts

import (
	"context"
	"errors"
	"fmt"
)

// Common errors for the read-aloud core.
var (
	// Synthesis errors
	ErrSynthesisFailed = errors.New("speech synthesis failed")
	ErrEmptyText       = errors.New("nothing to synthesize")

	// Alignment errors
	ErrAlignmentFailed   = errors.New("word alignment failed")
	ErrEmissionsTooShort = errors.New("emission matrix shorter than transcript")
	ErrVocabulary        = errors.New("invalid label vocabulary")
	ErrRecognizerMissing = errors.New("no recognizer configured")

	// Cache errors
	ErrCacheRead  = errors.New("cache read failed")
	ErrCacheWrite = errors.New("cache write failed")

	// Pipeline errors
	ErrCanceled        = errors.New("operation was canceled")
	ErrNoDocument      = errors.New("no document loaded")
	ErrInvalidPosition = errors.New("invalid paragraph index")
	ErrPipelineClosed  = errors.New("pipeline is closed")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// IsCancellation reports whether err is a cancellation outcome rather than
// a failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// IsRecoverableError checks if an error is recoverable.
func IsRecoverableError(err error) bool {
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrPipelineClosed),
		errors.Is(err, ErrVocabulary):
		return false
	}

	return true
}

// ErrorSeverity represents the severity of an error.
type ErrorSeverity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo ErrorSeverity = iota
	// SeverityWarning is for problems that degrade but don't stop playback.
	SeverityWarning
	// SeverityError is for errors that prevent normal operation.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the lowercase severity name.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// TTSError provides detailed error information.
type TTSError struct {
	Err       error                  // The underlying error
	Component string                 // Component that generated the error
	Action    string                 // Action being performed when error occurred
	Severity  ErrorSeverity          // Severity of the error
	Context   map[string]interface{} // Additional context
}

// Error implements the error interface.
func (e *TTSError) Error() string {
	if e.Err == nil {
		return "unknown error"
	}
	if e.Component == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Action, e.Err)
}

// Unwrap returns the underlying error.
func (e *TTSError) Unwrap() error {
	return e.Err
}

// IsRecoverable checks if the error is recoverable.
func (e *TTSError) IsRecoverable() bool {
	return IsRecoverableError(e.Err)
}

// NewTTSError creates a new error with context.
func NewTTSError(err error, component, action string) *TTSError {
	return &TTSError{
		Err:       err,
		Component: component,
		Action:    action,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
	}
}

// WithSeverity sets the error severity.
func (e *TTSError) WithSeverity(severity ErrorSeverity) *TTSError {
	e.Severity = severity
	return e
}

// WithContext adds context to the error.
func (e *TTSError) WithContext(key string, value interface{}) *TTSError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Stage names the step of sentence processing that failed.
type Stage string

const (
	StageSynthesis Stage = "synthesis"
	StageAlignment Stage = "alignment"
	StageCache     Stage = "cache"
)

// SentenceError is reported for a failure isolated to one sentence.
type SentenceError struct {
	Paragraph int
	Sentence  int
	Stage     Stage
	Err       error
}

// Error implements the error interface.
func (e SentenceError) Error() string {
	return fmt.Sprintf("paragraph %d sentence %d: %s: %v", e.Paragraph, e.Sentence, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e SentenceError) Unwrap() error {
	return e.Err
}
