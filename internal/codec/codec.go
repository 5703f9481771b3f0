// Package codec converts documents to and from their on-disk form and
// produces the canonical value encoding used for equality, indexing and joins.
package codec

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	dberrors "github.com/kartikbazzad/filedb/pkg/errors"
)

const (
	// Ext is the extension of every document file.
	Ext = ".json"

	indent = "    "
)

// Encode renders a document as pretty-printed JSON with 4-space indentation.
// '&', '<' and '>' are written as is, not as \u escapes.
func Encode(doc any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", dberrors.ErrParse, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses document content into a JSON object.
func Decode(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", dberrors.ErrParse, err)
	}
	if doc == nil {
		// "null" decodes without error into a nil map.
		return nil, fmt.Errorf("%w: document is not a JSON object", dberrors.ErrParse)
	}
	return doc, nil
}

// Canonical returns the compact JSON encoding of v with object keys sorted.
// Two values are equal for where/index/join purposes iff their canonical
// encodings are equal, so int 1999 and a decoded float64 1999 compare equal
// while the string "1999" does not.
func Canonical(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(b)), nil
}

// IntKey renders an integer key: the last four digits of n+10000. Keys
// outside 0..9999 wrap into the same four-digit window.
func IntKey(n int) string {
	s := strconv.Itoa(n + 10000)
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}

// KeyToFilename returns the document file name for key.
func KeyToFilename(key string) string {
	return key + Ext
}

// FilenameToKey strips the directory and extension from a document file name.
func FilenameToKey(filename string) string {
	return strings.TrimSuffix(filepath.Base(filename), Ext)
}

// IsDocumentFile reports whether name looks like a document file.
func IsDocumentFile(name string) bool {
	return strings.HasSuffix(name, Ext) && len(name) > len(Ext) && !strings.HasPrefix(name, ".")
}
