package query

import (
	"strings"

	"github.com/kartikbazzad/filedb/internal/codec"
	"github.com/kartikbazzad/filedb/pkg/storage"
)

// Criteria maps a field name to either a literal, matched by deep equality,
// or a Predicate over the field's value.
type Criteria map[string]any

// Predicate tests a single field value. Absent fields are passed as nil.
type Predicate func(v any) bool

// Term is one compiled criterion. Literals are kept in canonical encoded
// form so matching never depends on Go numeric types.
type Term struct {
	Field     string
	Value     any
	Canonical string
	Pred      Predicate
	err       error
}

// IsLiteral reports whether the term compares against a literal value.
func (t Term) IsLiteral() bool {
	return t.Pred == nil
}

func compile(field string, v any) Term {
	switch p := v.(type) {
	case Predicate:
		return Term{Field: field, Pred: p}
	case func(any) bool:
		return Term{Field: field, Pred: p}
	}
	canon, err := codec.Canonical(v)
	return Term{Field: field, Value: v, Canonical: canon, err: err}
}

func (t Term) match(doc storage.Document) bool {
	v, ok := doc[t.Field]
	if t.Pred != nil {
		return safeCall(t.Pred, v)
	}
	if !ok {
		return false
	}
	canon, err := codec.Canonical(v)
	return err == nil && canon == t.Canonical
}

// safeCall treats a panicking predicate as a non-match.
func safeCall(p Predicate, v any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return p(v)
}

// matcher folds the stage criteria into one storage predicate. A document
// must satisfy every term.
func matcher(criteria map[string]Term) storage.Predicate {
	if len(criteria) == 0 {
		return nil
	}
	terms := make([]Term, 0, len(criteria))
	for _, t := range criteria {
		terms = append(terms, t)
	}
	return func(doc storage.Document) bool {
		for _, t := range terms {
			if !t.match(doc) {
				return false
			}
		}
		return true
	}
}

// Eq matches values deeply equal to want.
func Eq(want any) Predicate {
	canon, err := codec.Canonical(want)
	return func(v any) bool {
		if err != nil {
			return false
		}
		got, gerr := codec.Canonical(v)
		return gerr == nil && got == canon
	}
}

// Ne matches values not deeply equal to want.
func Ne(want any) Predicate {
	eq := Eq(want)
	return func(v any) bool { return !eq(v) }
}

// Gt, Gte, Lt and Lte compare numbers with numbers and strings with strings.
// Values of any other pairing never match.
func Gt(bound any) Predicate  { return ordered(bound, func(c int) bool { return c > 0 }) }
func Gte(bound any) Predicate { return ordered(bound, func(c int) bool { return c >= 0 }) }
func Lt(bound any) Predicate  { return ordered(bound, func(c int) bool { return c < 0 }) }
func Lte(bound any) Predicate { return ordered(bound, func(c int) bool { return c <= 0 }) }

func ordered(bound any, ok func(int) bool) Predicate {
	return func(v any) bool {
		if rank(v, true) != rank(bound, true) {
			return false
		}
		switch rank(v, true) {
		case rankNumber, rankString:
			return ok(compareValues(v, true, bound, true))
		}
		return false
	}
}

// In matches values deeply equal to any of values.
func In(values ...any) Predicate {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if c, err := codec.Canonical(v); err == nil {
			set[c] = struct{}{}
		}
	}
	return func(v any) bool {
		c, err := codec.Canonical(v)
		if err != nil {
			return false
		}
		_, ok := set[c]
		return ok
	}
}

// HasPrefix matches string values starting with prefix.
func HasPrefix(prefix string) Predicate {
	return func(v any) bool {
		s, ok := v.(string)
		return ok && strings.HasPrefix(s, prefix)
	}
}

// Exists matches any present, non-null value.
func Exists() Predicate {
	return func(v any) bool { return v != nil }
}
