// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
)

// Kind classifies a conversion failure.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindIO         Kind = "io"
	KindEngine     Kind = "engine"
	KindIncomplete Kind = "incomplete"
)

// Step names the orchestration step at which a failure was detected.
type Step string

const (
	StepValidate Step = "validate"
	StepPrepare  Step = "prepare"
	StepOpen     Step = "open"
	StepConvert  Step = "convert"
	StepVerify   Step = "verify"
)

// Sentinel errors matched by errors.Is against an *Error of the same kind.
var (
	ErrNotFound   = errors.New("source not found")
	ErrIO         = errors.New("file system error")
	ErrEngine     = errors.New("conversion engine failed")
	ErrIncomplete = errors.New("conversion incomplete")
)

// Error is a classified conversion failure carrying the step and path at
// which it was detected.
type Error struct {
	Kind Kind
	Step Step
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s %s: %v", e.Kind, e.Step, e.Path, e.Err)
	}
	return fmt.Sprintf("[%s] %s %s", e.Kind, e.Step, e.Path)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return sentinel(e.Kind) == target
}

func sentinel(k Kind) error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindIO:
		return ErrIO
	case KindEngine:
		return ErrEngine
	case KindIncomplete:
		return ErrIncomplete
	}
	return nil
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// err is nil or unclassified.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

func newError(kind Kind, step Step, path string, err error) *Error {
	return &Error{Kind: kind, Step: step, Path: path, Err: err}
}
