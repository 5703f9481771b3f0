// Package errors defines the error kinds surfaced by the storage engine,
// the index store and the query engine.
//
// Every failure carries one Kind. Callers test for a kind with the standard
// library: errors.Is(err, dberrors.ErrNotFound).
package errors

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind int

const (
	KindUnknown   Kind = iota
	KindNotFound       // missing document file
	KindParse          // malformed document or index content
	KindIO             // filesystem failure other than a missing file
	KindAggregate      // first failure of a bulk operation
	KindInvalid        // caller supplied an unusable argument
	KindExists         // explicit key already taken
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindParse:
		return "parse error"
	case KindIO:
		return "io error"
	case KindAggregate:
		return "aggregate error"
	case KindInvalid:
		return "invalid argument"
	case KindExists:
		return "already exists"
	default:
		return "unknown error"
	}
}

var (
	// ErrNotFound is returned by Find and Remove when the document file is missing.
	ErrNotFound = errors.New("document not found")

	// ErrParse is returned when a document or index artifact is not valid JSON.
	ErrParse = errors.New("malformed document content")

	// ErrIO is returned for filesystem failures other than a missing file.
	ErrIO = errors.New("filesystem failure")

	// ErrAggregate wraps the first failure of FindAll, InsertAll or RemoveAll.
	ErrAggregate = errors.New("bulk operation failed")

	// ErrKeyExists is returned by InsertWithKey when the key is taken.
	ErrKeyExists = errors.New("key already exists")

	// ErrInvalidKey is returned for empty keys or keys containing path separators.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidCollection is returned for unusable collection names.
	ErrInvalidCollection = errors.New("invalid collection name")

	// ErrInvalidLimit is returned by Exec when Limit was given a non-positive value.
	ErrInvalidLimit = errors.New("limit must be a positive integer")

	// ErrInvalidField is returned for empty field names.
	ErrInvalidField = errors.New("invalid field name")
)

var kindSentinels = map[Kind]error{
	KindNotFound:  ErrNotFound,
	KindParse:     ErrParse,
	KindIO:        ErrIO,
	KindAggregate: ErrAggregate,
	KindExists:    ErrKeyExists,
}

// Error describes a failed operation on one collection and, when relevant, one key.
type Error struct {
	Kind       Kind
	Op         string
	Collection string
	Key        string
	Err        error
}

// New builds an *Error, classifying err when kind is KindUnknown.
func New(kind Kind, op, collection, key string, err error) *Error {
	if kind == KindUnknown {
		kind = defaultClassifier.Classify(err)
	}
	return &Error{
		Kind:       kind,
		Op:         op,
		Collection: collection,
		Key:        key,
		Err:        err,
	}
}

func (e *Error) Error() string {
	target := e.Collection
	if e.Key != "" {
		target = fmt.Sprintf("%s/%s", e.Collection, e.Key)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, target, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, target, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// AggregateError is the first failure observed by a bulk operation. Index is
// the position of the failed item in the input. Items that already completed
// are not rolled back.
type AggregateError struct {
	Op    string
	Index int
	Err   error
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("%s: item %d: %v", e.Op, e.Index, e.Err)
}

func (e *AggregateError) Unwrap() error {
	return e.Err
}

func (e *AggregateError) Is(target error) bool {
	return target == ErrAggregate
}

// KindOf returns the kind of err, looking through wrapping.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var agg *AggregateError
	if errors.As(err, &agg) {
		return KindAggregate
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return defaultClassifier.Classify(err)
}

// IsNotFound reports whether err is a missing-document failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
