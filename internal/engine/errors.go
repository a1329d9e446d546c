package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData marks a derivation that is undefined over an empty view.
	ErrNoData = errors.New("no data available")

	ErrYearOutOfRange = errors.New("year out of range")
)

type LoadErrorKind int

const (
	KindNotFound LoadErrorKind = iota + 1
	KindRead
	KindParse
	KindMissingColumn
	KindEmpty
)

func (k LoadErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindRead:
		return "read"
	case KindParse:
		return "parse"
	case KindMissingColumn:
		return "missing column"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// LoadError is fatal: without a dataset no view can be produced.
type LoadError struct {
	Kind   LoadErrorKind
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s (%s): %v", e.Source, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadKind reports whether err is a LoadError of the given kind.
func IsLoadKind(err error, kind LoadErrorKind) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Kind == kind
}
