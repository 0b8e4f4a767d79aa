package generate

import (
	"errors"
	"fmt"
)

// Kind categorizes pipeline failures so the HTTP layer can pick a status.
type Kind string

const (
	KindInvalidEncoding   Kind = "invalid_encoding"
	KindMissingInput      Kind = "missing_required_input"
	KindGenerationFailure Kind = "generation_failure"
	KindTimeout           Kind = "timeout"
)

// Error is a pipeline failure with its kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrTimeout) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidEncoding   = &Error{Kind: KindInvalidEncoding, Message: "invalid encoding"}
	ErrMissingInput      = &Error{Kind: KindMissingInput, Message: "missing required input"}
	ErrGenerationFailure = &Error{Kind: KindGenerationFailure, Message: "generation failed"}
	ErrTimeout           = &Error{Kind: KindTimeout, Message: "generation timed out"}
)

// KindOf returns the kind of err, or KindGenerationFailure for errors that did
// not come from the pipeline.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGenerationFailure
}

func invalidEncoding(err error) *Error {
	return &Error{Kind: KindInvalidEncoding, Message: "Invalid base64 encoding in existing_template", Err: err}
}

func missingInput(msg string) *Error {
	return &Error{Kind: KindMissingInput, Message: msg}
}

func generationFailure(stage string, err error) *Error {
	return &Error{Kind: KindGenerationFailure, Message: stage, Err: err}
}

func timeout(stage string, err error) *Error {
	return &Error{Kind: KindTimeout, Message: stage, Err: err}
}
