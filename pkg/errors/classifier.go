package errors

import (
	"errors"
	"io/fs"
	"syscall"

	"github.com/goccy/go-json"
)

// Classifier maps raw filesystem and codec errors onto a Kind.
type Classifier struct{}

var defaultClassifier = NewClassifier()

// NewClassifier creates a new error classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify determines the kind of an error.
func (c *Classifier) Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrKeyExists):
		return KindExists
	case errors.Is(err, ErrInvalidKey), errors.Is(err, ErrInvalidCollection),
		errors.Is(err, ErrInvalidLimit), errors.Is(err, ErrInvalidField):
		return KindInvalid
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindParse
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT:
			return KindNotFound
		case syscall.EINVAL, syscall.ENAMETOOLONG:
			return KindInvalid
		}
		return KindIO
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return KindIO
	}

	return KindIO
}
