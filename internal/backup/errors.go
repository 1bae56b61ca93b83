package backup

import (
	"errors"
	"fmt"
)

// Kind classifies backup failures.
type Kind int

const (
	KindIOFailure Kind = iota + 1
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindIOFailure:
		return "io failure"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against an *Error of the same Kind.
var (
	ErrIOFailure = errors.New("backup io failure")
	ErrCancelled = errors.New("backup cancelled")
)

// Error is returned by Manager for every failed snapshot or discard.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	prefix := "backup"
	if e.Path != "" {
		prefix += " " + e.Path
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", prefix, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", prefix, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrIOFailure:
		return e.Kind == KindIOFailure
	case ErrCancelled:
		return e.Kind == KindCancelled
	}
	return false
}
