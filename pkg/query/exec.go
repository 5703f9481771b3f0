package query

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kartikbazzad/filedb/internal/metrics"
	"github.com/kartikbazzad/filedb/pkg/storage"
)

// Exec runs q and returns the resulting documents. Every call re-reads the
// collection; results are fresh maps the caller may modify.
func (q *Query) Exec(ctx context.Context) ([]storage.Document, error) {
	return q.exec(ctx, map[*Query]bool{})
}

func (q *Query) exec(ctx context.Context, visiting map[*Query]bool) ([]storage.Document, error) {
	if visiting[q] {
		return nil, fmt.Errorf("%w: %s", ErrJoinCycle, q.src.Name())
	}
	visiting[q] = true
	defer delete(visiting, q)

	if err := q.validate(); err != nil {
		return nil, err
	}
	started := time.Now()

	stages := q.plan.Stages
	docs, strategy, err := q.source(ctx, stages[0])
	if err != nil {
		metrics.ObserveOperation("query", err)
		return nil, err
	}
	for i := range stages {
		st := &stages[i]
		if i > 0 {
			docs = st.apply(docs)
		}
		if st.Join != nil {
			if docs, err = join(ctx, docs, st.Join, visiting); err != nil {
				metrics.ObserveOperation("query", err)
				return nil, err
			}
		}
	}
	docs = project(docs, q.plan.Projection)

	metrics.ObserveOperation("query", nil)
	metrics.ObserveQuery(strategy.String(), started)
	q.logger.Debug("query executed",
		"collection", q.src.Name(),
		"strategy", strategy.String(),
		"stages", len(stages),
		"rows", len(docs),
		"elapsed", time.Since(started))
	return docs, nil
}

// source reads the collection for the first stage, picking the cheapest
// strategy the stage allows.
func (q *Query) source(ctx context.Context, st Stage) ([]storage.Document, Strategy, error) {
	pred := matcher(st.Criteria)

	var stop storage.StopFunc
	if st.HasLimit && st.Order == nil {
		n := st.Limit
		stop = func(acc []storage.Document) bool { return len(acc) >= n }
	}

	var (
		docs     []storage.Document
		strategy = st.explain()
		err      error
	)

	keys, indexed, err := q.indexedKeys(ctx, st.Criteria)
	if err != nil {
		return nil, strategy, err
	}

	switch {
	case indexed:
		// Index entries may be stale, so missing keys are skipped and every
		// document is checked against the full criteria again.
		var entries []storage.Entry
		entries, err = q.src.Scan(ctx, storage.Scan{
			Keys:        keys,
			Predicate:   pred,
			Stop:        stop,
			SkipMissing: true,
		})
		docs = storage.Docs(entries)
		if st.Order == nil {
			strategy = IndexScan
		}
	case pred == nil && stop == nil:
		docs, err = q.src.FindAll(ctx)
	case pred == nil:
		docs, err = q.src.FindUntil(ctx, stop)
	case stop == nil:
		docs, err = q.src.FilterAll(ctx, pred)
	default:
		docs, err = q.src.FilterUntil(ctx, pred, stop)
	}
	if err != nil {
		return nil, strategy, err
	}

	sortDocs(docs, st.Order)
	return truncate(docs, st), strategy, nil
}

// indexedKeys intersects the index results of every literal term that has an
// index. indexed is false when no term could use one.
func (q *Query) indexedKeys(ctx context.Context, criteria map[string]Term) (keys []storage.Key, indexed bool, err error) {
	if q.indexes == nil || len(criteria) == 0 {
		return nil, false, nil
	}
	fields := make([]string, 0, len(criteria))
	for f, t := range criteria {
		if t.IsLiteral() {
			fields = append(fields, f)
		}
	}
	slices.Sort(fields)

	for _, f := range fields {
		found, ok, err := q.indexes.GetIndexes(ctx, q.src.Name(), f, criteria[f].Value)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		if !indexed {
			keys, indexed = found, true
		} else {
			keys = intersect(keys, found)
		}
		if len(keys) == 0 {
			break
		}
	}
	if indexed && keys == nil {
		keys = []storage.Key{}
	}
	return keys, indexed, nil
}

// intersect keeps the keys of a that also appear in b, in a's order.
func intersect(a, b []storage.Key) []storage.Key {
	in := make(map[storage.Key]struct{}, len(b))
	for _, k := range b {
		in[k] = struct{}{}
	}
	out := make([]storage.Key, 0, min(len(a), len(b)))
	for _, k := range a {
		if _, ok := in[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// apply runs a later stage over rows already in memory.
func (st *Stage) apply(docs []storage.Document) []storage.Document {
	if pred := matcher(st.Criteria); pred != nil {
		kept := make([]storage.Document, 0, len(docs))
		for _, d := range docs {
			if pred(d) {
				kept = append(kept, d)
			}
		}
		docs = kept
	}
	sortDocs(docs, st.Order)
	return truncate(docs, *st)
}

func truncate(docs []storage.Document, st Stage) []storage.Document {
	if st.HasLimit && len(docs) > st.Limit {
		return docs[:st.Limit]
	}
	return docs
}
