// Package query provides a deferred, chainable query builder over one
// collection of a storage.Database.
//
// Builder methods only record configuration and return the same *Query, so
// calls can be chained. Nothing touches the filesystem until Exec or Count.
// A Query can be changed and executed again; each execution reflects the
// configuration at that moment.
//
//	movies, err := query.New(db, "movies").
//		Where(query.Criteria{"year": 1999}).
//		Order("-rank").
//		Limit(3).
//		Select("name rank").
//		Exec(ctx)
//
// A Query is not safe for concurrent mutation. Concurrent Exec calls on a
// Query nobody is mutating are fine.
package query

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kartikbazzad/filedb/internal/logger"
	dberrors "github.com/kartikbazzad/filedb/pkg/errors"
	"github.com/kartikbazzad/filedb/pkg/index"
	"github.com/kartikbazzad/filedb/pkg/storage"
)

// ErrJoinCycle is returned when a query joins, directly or through other
// queries, with itself.
var ErrJoinCycle = errors.New("query joins with itself")

// Source is the collection a Query reads from. *storage.Collection
// implements it.
type Source interface {
	Name() string
	FindAll(ctx context.Context) ([]storage.Document, error)
	FindUntil(ctx context.Context, stop storage.StopFunc) ([]storage.Document, error)
	FilterAll(ctx context.Context, pred storage.Predicate) ([]storage.Document, error)
	FilterUntil(ctx context.Context, pred storage.Predicate, stop storage.StopFunc) ([]storage.Document, error)
	Scan(ctx context.Context, s storage.Scan) ([]storage.Entry, error)
}

// IndexReader answers equality lookups. *index.Store implements it.
type IndexReader interface {
	GetIndexes(ctx context.Context, collection, field string, value any) ([]storage.Key, bool, error)
}

// Query is a deferred query over one collection.
type Query struct {
	src     Source
	indexes IndexReader
	logger  *logger.Logger
	plan    Plan
}

// Option customises New.
type Option func(*Query)

// WithIndexes consults r for literal where terms.
func WithIndexes(r IndexReader) Option {
	return func(q *Query) { q.indexes = r }
}

// WithoutIndexes disables index lookups; every filter scans the collection.
func WithoutIndexes() Option {
	return func(q *Query) { q.indexes = nil }
}

// WithLogger sets the query logger.
func WithLogger(log *logger.Logger) Option {
	return func(q *Query) { q.logger = log }
}

// New starts an empty query over collection. Indexes built with the index
// package are used unless the database config or WithoutIndexes disables
// them.
func New(db *storage.Database, collection string, opts ...Option) *Query {
	q := &Query{
		src:    db.Collection(collection),
		logger: db.Logger(),
		plan:   newPlan(),
	}
	if db.Config().Query.UseIndexes {
		q.indexes = index.NewStore(db)
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// From starts an empty query over any Source.
func From(src Source, opts ...Option) *Query {
	q := &Query{src: src, logger: logger.Discard(), plan: newPlan()}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Query) stage() *Stage {
	return &q.plan.Stages[len(q.plan.Stages)-1]
}

// Limit caps the number of documents the current stage yields. n must be
// positive; otherwise Exec fails with ErrInvalidLimit.
func (q *Query) Limit(n int) *Query {
	st := q.stage()
	st.HasLimit = true
	st.Limit = n
	return q
}

// Select sets the projection applied to the final rows: a whitespace
// separated list of fields to keep, or, with a leading "-", fields to drop.
// An empty spec clears the projection.
func (q *Query) Select(spec string) *Query {
	q.plan.Projection = parseProjection(spec)
	return q
}

// Where adds criteria to the current stage. Criteria given in separate calls
// combine; a field given again replaces its earlier criterion.
func (q *Query) Where(c Criteria) *Query {
	if len(c) == 0 {
		return q
	}
	st := q.stage()
	if st.Criteria == nil {
		st.Criteria = make(map[string]Term, len(c))
	}
	for field, v := range c {
		st.Criteria[field] = compile(field, v)
	}
	return q
}

// Order sorts the current stage by field, descending when field starts with
// "-". Documents missing the field, or holding null, sort first. An empty
// field clears the ordering.
func (q *Query) Order(field string) *Query {
	q.stage().Order = parseOrder(field)
	return q
}

// OrderBy sorts the current stage with a caller supplied comparator.
func (q *Query) OrderBy(c Comparator) *Query {
	if c == nil {
		q.stage().Order = nil
		return q
	}
	q.stage().Order = &Ordering{Compare: c}
	return q
}

// InnerJoin pairs every row of the current stage with every row of foreign
// whose foreignField equals its localField, merging each pair with Merge.
// Later Where, Limit and Order calls apply to the joined rows.
func (q *Query) InnerJoin(foreign *Query, localField, foreignField string) *Query {
	q.stage().Join = &Join{Foreign: foreign, LocalField: localField, ForeignField: foreignField}
	q.plan.Stages = append(q.plan.Stages, Stage{})
	return q
}

// Clone returns an independent copy of q. Changing one never affects the
// other. Queries passed to InnerJoin are shared by both.
func (q *Query) Clone() *Query {
	c := *q
	c.plan = q.plan.clone()
	return &c
}

// Plan returns a copy of the accumulated configuration.
func (q *Query) Plan() Plan {
	return q.plan.clone()
}

// Collection returns the name of the collection q reads.
func (q *Query) Collection() string {
	return q.src.Name()
}

// Explain reports the strategy the first stage uses when no index applies.
func (q *Query) Explain() Strategy {
	return q.plan.Stages[0].explain()
}

// Count executes q and returns the number of rows.
func (q *Query) Count(ctx context.Context) (int, error) {
	docs, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// String renders the plan for logs and the shell.
func (q *Query) String() string {
	var b strings.Builder
	b.WriteString(q.src.Name())
	for i, st := range q.plan.Stages {
		if i > 0 {
			b.WriteString(" |")
		}
		if st.hasCriteria() {
			fields := make([]string, 0, len(st.Criteria))
			for f, t := range st.Criteria {
				if t.IsLiteral() {
					fields = append(fields, f+"="+t.Canonical)
				} else {
					fields = append(fields, f+"=<fn>")
				}
			}
			slices.Sort(fields)
			fmt.Fprintf(&b, " where(%s)", strings.Join(fields, ","))
		}
		if st.Order != nil {
			switch {
			case st.Order.Compare != nil:
				b.WriteString(" order(<fn>)")
			case st.Order.Desc:
				fmt.Fprintf(&b, " order(-%s)", st.Order.Field)
			default:
				fmt.Fprintf(&b, " order(%s)", st.Order.Field)
			}
		}
		if st.HasLimit {
			fmt.Fprintf(&b, " limit(%d)", st.Limit)
		}
		if st.Join != nil && st.Join.Foreign != nil {
			fmt.Fprintf(&b, " join(%s %s=%s)", st.Join.Foreign.Collection(), st.Join.LocalField, st.Join.ForeignField)
		}
	}
	if p := q.plan.Projection; p != nil {
		spec := strings.Join(p.Fields, " ")
		if p.Invert {
			spec = "-" + spec
		}
		fmt.Fprintf(&b, " select(%s)", spec)
	}
	return b.String()
}

// validate rejects configurations that can never execute.
func (q *Query) validate() error {
	for _, st := range q.plan.Stages {
		if st.HasLimit && st.Limit <= 0 {
			return dberrors.New(dberrors.KindInvalid, "query", q.src.Name(), "",
				fmt.Errorf("%w: %d", dberrors.ErrInvalidLimit, st.Limit))
		}
		for field, t := range st.Criteria {
			if field == "" {
				return dberrors.New(dberrors.KindInvalid, "query", q.src.Name(), "", dberrors.ErrInvalidField)
			}
			if t.err != nil {
				return dberrors.New(dberrors.KindInvalid, "query", q.src.Name(), "",
					fmt.Errorf("%w: %s: %v", dberrors.ErrInvalidField, field, t.err))
			}
		}
		if j := st.Join; j != nil {
			if j.Foreign == nil || j.LocalField == "" || j.ForeignField == "" {
				return dberrors.New(dberrors.KindInvalid, "query", q.src.Name(), "",
					fmt.Errorf("%w: join needs a foreign query and both fields", dberrors.ErrInvalidField))
			}
		}
	}
	return nil
}
