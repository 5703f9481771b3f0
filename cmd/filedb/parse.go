package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/kartikbazzad/filedb/pkg/query"
	"github.com/kartikbazzad/filedb/pkg/storage"
)

// Longer operators come first so ">=" is not read as ">".
var conditionOps = []string{">=", "<=", "!=", "^=", "=", ">", "<"}

// parseCondition turns "field<op>value" into a where term. The value is
// decoded as JSON when it parses, otherwise it is taken as a string.
func parseCondition(expr string) (string, any, error) {
	pos, op := -1, ""
	for i := 0; i < len(expr) && pos < 0; i++ {
		for _, candidate := range conditionOps {
			if strings.HasPrefix(expr[i:], candidate) {
				pos, op = i, candidate
				break
			}
		}
	}
	if pos < 0 {
		return "", nil, fmt.Errorf("condition %q: missing operator", expr)
	}
	field := strings.TrimSpace(expr[:pos])
	if field == "" {
		return "", nil, fmt.Errorf("condition %q: missing field", expr)
	}
	raw := strings.TrimSpace(expr[pos+len(op):])
	value := parseValue(raw)

	switch op {
	case "=":
		return field, value, nil
	case "!=":
		return field, query.Ne(value), nil
	case ">":
		return field, query.Gt(value), nil
	case ">=":
		return field, query.Gte(value), nil
	case "<":
		return field, query.Lt(value), nil
	case "<=":
		return field, query.Lte(value), nil
	default:
		return field, query.HasPrefix(raw), nil
	}
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// parseJoin reads "collection:localField=foreignField".
func parseJoin(spec string) (collection, local, foreign string, err error) {
	collection, fields, ok := strings.Cut(spec, ":")
	if !ok {
		return "", "", "", fmt.Errorf("join %q: want collection:local=foreign", spec)
	}
	local, foreign, ok = strings.Cut(fields, "=")
	collection, local, foreign = strings.TrimSpace(collection), strings.TrimSpace(local), strings.TrimSpace(foreign)
	if !ok || collection == "" || local == "" || foreign == "" {
		return "", "", "", fmt.Errorf("join %q: want collection:local=foreign", spec)
	}
	return collection, local, foreign, nil
}

// parseKey maps an all-digit argument onto the padded integer key, so "14"
// names 0014.json. Anything else is used verbatim.
func parseKey(arg string) storage.Key {
	if arg == "" || strings.TrimLeft(arg, "0123456789") != "" {
		return storage.Key(arg)
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return storage.Key(arg)
	}
	return storage.IntKey(n)
}

// splitArgs splits a shell line on whitespace. Double quotes group words and
// a backslash escapes the next character.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		escaped bool
		started bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped, started = true, true
		case r == '"':
			inQuote, started = !inQuote, true
		case !inQuote && (r == ' ' || r == '\t'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote")
	}
	if escaped {
		return nil, fmt.Errorf("trailing backslash")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}

// queryOptions are the query flags shared by the query command and the
// shell's .query.
type queryOptions struct {
	where      []string
	selectSpec string
	order      string
	limit      int
	joins      []string
	explain    bool
}

func (o *queryOptions) bind(fs *pflag.FlagSet) {
	fs.StringArrayVarP(&o.where, "where", "w", nil, "condition field<op>value; op is one of = != > >= < <= ^=")
	fs.StringVarP(&o.selectSpec, "select", "s", "", "space separated fields to keep; a leading - drops them instead")
	fs.StringVarP(&o.order, "order", "o", "", "field to order by; a leading - sorts descending")
	fs.IntVarP(&o.limit, "limit", "l", 0, "maximum number of documents (0 = no limit)")
	fs.StringArrayVarP(&o.joins, "join", "j", nil, "inner join collection:local=foreign")
	fs.BoolVar(&o.explain, "explain", false, "print the read strategy instead of the documents")
}

func (o *queryOptions) build(db *storage.Database, collection string, opts ...query.Option) (*query.Query, error) {
	q := query.New(db, collection, opts...)

	if len(o.where) > 0 {
		criteria := make(query.Criteria, len(o.where))
		for _, expr := range o.where {
			field, v, err := parseCondition(expr)
			if err != nil {
				return nil, err
			}
			criteria[field] = v
		}
		q.Where(criteria)
	}
	if o.order != "" {
		q.Order(o.order)
	}
	if o.limit != 0 {
		q.Limit(o.limit)
	}
	for _, spec := range o.joins {
		foreign, local, remote, err := parseJoin(spec)
		if err != nil {
			return nil, err
		}
		q.InnerJoin(query.New(db, foreign, opts...), local, remote)
	}
	if o.selectSpec != "" {
		q.Select(o.selectSpec)
	}
	return q, nil
}
