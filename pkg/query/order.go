package query

import (
	"cmp"
	"slices"
	"strings"

	"github.com/kartikbazzad/filedb/internal/codec"
	"github.com/kartikbazzad/filedb/pkg/storage"
)

// Comparator orders two documents the way cmp.Compare orders values.
type Comparator func(a, b storage.Document) int

// Value ranks. Absent and null sort first, then booleans, numbers, strings,
// and finally objects and arrays by their canonical encoding.
const (
	rankNull = iota
	rankBool
	rankNumber
	rankString
	rankOther
)

func rank(v any, present bool) int {
	if !present || v == nil {
		return rankNull
	}
	switch v.(type) {
	case bool:
		return rankBool
	case string:
		return rankString
	}
	if _, ok := toFloat(v); ok {
		return rankNumber
	}
	return rankOther
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func compareValues(a any, aok bool, b any, bok bool) int {
	ra, rb := rank(a, aok), rank(b, bok)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankNull:
		return 0
	case rankBool:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case rankNumber:
		x, _ := toFloat(a)
		y, _ := toFloat(b)
		return cmp.Compare(x, y)
	case rankString:
		return strings.Compare(a.(string), b.(string))
	}
	x, _ := codec.Canonical(a)
	y, _ := codec.Canonical(b)
	return strings.Compare(x, y)
}

// ByField orders documents by the value of field.
func ByField(field string) Comparator {
	return func(a, b storage.Document) int {
		av, aok := a[field]
		bv, bok := b[field]
		return compareValues(av, aok, bv, bok)
	}
}

// Desc reverses c.
func Desc(c Comparator) Comparator {
	return func(a, b storage.Document) int { return c(b, a) }
}

func (o *Ordering) comparator() Comparator {
	c := o.Compare
	if c == nil {
		c = ByField(o.Field)
	}
	if o.Desc {
		c = Desc(c)
	}
	return c
}

// sortDocs sorts docs in place. The sort is stable so equal documents keep
// their key order.
func sortDocs(docs []storage.Document, o *Ordering) {
	if o == nil {
		return
	}
	c := o.comparator()
	slices.SortStableFunc(docs, func(a, b storage.Document) int { return c(a, b) })
}

func parseOrder(field string) *Ordering {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil
	}
	if rest, ok := strings.CutPrefix(field, "-"); ok {
		return &Ordering{Field: strings.TrimSpace(rest), Desc: true}
	}
	return &Ordering{Field: field}
}
