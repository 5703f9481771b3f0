package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"testing"

	"github.com/goccy/go-json"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	err := New(KindNotFound, "find", "movies", "0001", fs.ErrNotExist)

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if errors.Is(err, ErrParse) {
		t.Errorf("not found error should not match ErrParse")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("cause should stay reachable through Unwrap")
	}
}

func TestError_Message(t *testing.T) {
	err := New(KindParse, "find", "movies", "0003", fmt.Errorf("bad json"))
	want := "find movies/0003: parse error: bad json"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}

	err = New(KindIO, "drop", "movies", "", nil)
	want = "drop movies: io error"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestNew_ClassifiesUnknownKind(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{&fs.PathError{Op: "open", Path: "x", Err: syscall.ENOENT}, KindNotFound},
		{&fs.PathError{Op: "open", Path: "x", Err: syscall.EACCES}, KindIO},
		{fmt.Errorf("wrap: %w", ErrParse), KindParse},
		{fmt.Errorf("wrap: %w", ErrInvalidLimit), KindInvalid},
		{ErrKeyExists, KindExists},
		{os.ErrNotExist, KindNotFound},
	}
	for _, tc := range cases {
		if got := New(KindUnknown, "op", "c", "", tc.err).Kind; got != tc.want {
			t.Errorf("classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestClassifier_JSONErrors(t *testing.T) {
	var v map[string]any
	err := json.Unmarshal([]byte(`{"a":`), &v)
	if err == nil {
		t.Fatal("expected a syntax error")
	}
	if got := NewClassifier().Classify(err); got != KindParse {
		t.Errorf("got %s, want parse error", got)
	}
}

func TestAggregateError(t *testing.T) {
	cause := New(KindNotFound, "find", "movies", "0007", fs.ErrNotExist)
	var err error = &AggregateError{Op: "findAll", Index: 7, Err: cause}

	if !errors.Is(err, ErrAggregate) {
		t.Error("expected ErrAggregate")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("the first failure should be reachable")
	}
	if KindOf(err) != KindAggregate {
		t.Errorf("KindOf = %s, want aggregate", KindOf(err))
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should see through the aggregate")
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != KindUnknown {
		t.Error("nil error has no kind")
	}
	wrapped := fmt.Errorf("outer: %w", New(KindExists, "insertWithKey", "c", "k", ErrKeyExists))
	if KindOf(wrapped) != KindExists {
		t.Errorf("KindOf = %s, want exists", KindOf(wrapped))
	}
}
