package llm

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies a backend failure for retry/skip decisions.
type FailureKind string

const (
	KindTransient  FailureKind = "transient"
	KindPersistent FailureKind = "persistent"
	KindBadOutput  FailureKind = "bad_output"
	KindMalformed  FailureKind = "malformed"
)

// WriterError is a writer backend failure.
type WriterError struct {
	Kind FailureKind
	Err  error
}

func (e *WriterError) Error() string {
	return fmt.Sprintf("writer (%s): %v", e.Kind, e.Err)
}

func (e *WriterError) Unwrap() error { return e.Err }

// AuditorError is an auditor backend failure. Raw carries the unparseable
// response for Malformed failures.
type AuditorError struct {
	Kind FailureKind
	Err  error
	Raw  string
}

func (e *AuditorError) Error() string {
	return fmt.Sprintf("auditor (%s): %v", e.Kind, e.Err)
}

func (e *AuditorError) Unwrap() error { return e.Err }

// WriterKind extracts the failure kind from an error, defaulting to
// Transient for plain errors (timeouts, network).
func WriterKind(err error) FailureKind {
	var we *WriterError
	if errors.As(err, &we) {
		return we.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindTransient
}

// AuditorKind extracts the failure kind from an error.
func AuditorKind(err error) FailureKind {
	var ae *AuditorError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindTransient
}
