package conversion

import (
	"errors"
	"fmt"
)

// ValidationError rejects a malformed request or option snapshot. Never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

// RetrievableInputError is a download or file access failure that may succeed later.
type RetrievableInputError struct {
	Source string
	Err    error
}

func (e *RetrievableInputError) Error() string {
	return fmt.Sprintf("retrieve input %s: %v", e.Source, e.Err)
}

func (e *RetrievableInputError) Unwrap() error { return e.Err }

// MissingInputError means the referenced file does not exist. Never retried.
type MissingInputError struct {
	Path string
}

func (e *MissingInputError) Error() string { return "file not found: " + e.Path }

// ConversionError wraps any failure raised by the conversion engine.
type ConversionError struct {
	Err error
}

func (e *ConversionError) Error() string { return "conversion failed: " + e.Err.Error() }

func (e *ConversionError) Unwrap() error { return e.Err }

// EmbeddingError is retried like a ConversionError.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return "embedding failed: " + e.Err.Error() }

func (e *EmbeddingError) Unwrap() error { return e.Err }

// WebhookDeliveryError is logged and discarded; it never affects task status.
type WebhookDeliveryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *WebhookDeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("webhook %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *WebhookDeliveryError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed. Unclassified
// errors are treated as transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var missing *MissingInputError
	if errors.As(err, &missing) {
		return false
	}
	var invalid *ValidationError
	if errors.As(err, &invalid) {
		return false
	}
	return true
}

// Kind names the error class for logs and metrics.
func Kind(err error) string {
	var (
		invalid   *ValidationError
		retrieval *RetrievableInputError
		missing   *MissingInputError
		embed     *EmbeddingError
		convert   *ConversionError
		webhook   *WebhookDeliveryError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &invalid):
		return "validation"
	case errors.As(err, &missing):
		return "missing_input"
	case errors.As(err, &retrieval):
		return "retrievable_input"
	case errors.As(err, &embed):
		return "embedding"
	case errors.As(err, &convert):
		return "conversion"
	case errors.As(err, &webhook):
		return "webhook"
	default:
		return "unknown"
	}
}
