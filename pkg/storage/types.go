package storage

import (
	"strconv"
	"strings"

	"github.com/kartikbazzad/filedb/internal/codec"
	dberrors "github.com/kartikbazzad/filedb/pkg/errors"
)

// Document is an arbitrary JSON object. Its key is not stored inside it.
type Document = map[string]any

// Key identifies a document within a collection and names its file.
type Key string

// IntKey renders an engine-assigned integer key. Only the last four digits of
// n+10000 are kept, so keys above 9999 wrap around and can collide with
// existing ones.
func IntKey(n int) Key {
	return Key(codec.IntKey(n))
}

// Int returns the integer value of an engine-style key.
func (k Key) Int() (int, bool) {
	n, err := strconv.Atoi(string(k))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (k Key) String() string {
	return string(k)
}

// Entry pairs a document with its key.
type Entry struct {
	Key Key
	Doc Document
}

// Predicate decides whether a document is kept by a filtering scan.
type Predicate func(doc Document) bool

// StopFunc is evaluated against the documents accumulated so far; a sequential
// scan stops reading as soon as it returns true.
type StopFunc func(acc []Document) bool

// Scan configures the sequential scan primitive.
type Scan struct {
	Keys        []Key     // nil = every key in the collection
	Predicate   Predicate // nil = keep every document
	Stop        StopFunc  // nil = read until the keys run out
	SkipMissing bool      // ignore keys whose file vanished (stale index entries)
}

// Docs extracts the documents of entries.
func Docs(entries []Entry) []Document {
	docs := make([]Document, len(entries))
	for i, e := range entries {
		docs[i] = e.Doc
	}
	return docs
}

func validateKey(key Key) error {
	s := string(key)
	if s == "" || strings.HasPrefix(s, ".") || strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0) {
		return dberrors.ErrInvalidKey
	}
	return nil
}

// ValidateCollectionName rejects names that cannot be a single visible directory.
func ValidateCollectionName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return dberrors.ErrInvalidCollection
	}
	return nil
}
