package engine

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies why a transcript acquisition step failed.
type ErrorKind string

const (
	KindInvalidReference       ErrorKind = "InvalidReference"
	KindNoCaptionsAvailable    ErrorKind = "NoCaptionsAvailable"
	KindNetworkFailure         ErrorKind = "NetworkFailure"
	KindProxyFailure           ErrorKind = "ProxyFailure"
	KindAudioDownloadFailure   ErrorKind = "AudioDownloadFailure"
	KindTranscriptionFailure   ErrorKind = "TranscriptionFailure"
	KindAllStrategiesExhausted ErrorKind = "AllStrategiesExhausted"
)

// AcquisitionError is an error tagged with an ErrorKind.
// Op names the operation that failed ("resolve", "captions", "audio", ...).
type AcquisitionError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// NewError wraps err with kind. A nil err still produces a non-nil error.
func NewError(kind ErrorKind, op string, err error) *AcquisitionError {
	return &AcquisitionError{Kind: kind, Op: op, Err: err}
}

// Errorf is NewError with a formatted cause.
func Errorf(kind ErrorKind, op, format string, args ...any) *AcquisitionError {
	return NewError(kind, op, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the outermost AcquisitionError in err's chain,
// or "" when err carries none.
func KindOf(err error) ErrorKind {
	var ae *AcquisitionError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// Reclassify returns err tagged with kind, keeping the original chain.
// Errors already of kind, or of one of keep, are returned as-is.
func Reclassify(err error, kind ErrorKind, op string, keep ...ErrorKind) error {
	if err == nil {
		return nil
	}
	current := KindOf(err)
	if current == kind {
		return err
	}
	for _, k := range keep {
		if current == k {
			return err
		}
	}
	return NewError(kind, op, err)
}

// IsCanceled reports whether err is due to the caller cancelling ctx
// (as opposed to a per-step deadline).
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
