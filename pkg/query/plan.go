package query

import (
	"maps"
	"slices"
)

// Strategy names how the first stage of a plan reads the collection.
type Strategy int

const (
	FullScan        Strategy = iota // every document, key order, concurrent reads
	LimitScan                       // sequential, stop after N documents
	FilterScan                      // every document, keep matches
	FilterLimitScan                 // sequential, stop after N matches
	IndexScan                       // read only the keys an index returned
	SortScan                        // full materialisation, in-memory sort, then limit
)

func (s Strategy) String() string {
	switch s {
	case FullScan:
		return "full_scan"
	case LimitScan:
		return "limit_scan"
	case FilterScan:
		return "filter_scan"
	case FilterLimitScan:
		return "filter_limit_scan"
	case IndexScan:
		return "index_scan"
	case SortScan:
		return "sort_scan"
	default:
		return "unknown"
	}
}

// Plan is the accumulated configuration of a Query. It is split into stages:
// InnerJoin closes the current stage and later Where/Limit/Order calls
// configure the next one, which runs in memory over the joined rows.
type Plan struct {
	Stages     []Stage
	Projection *Projection
}

// Stage is one limit/where/order step, optionally followed by a join.
type Stage struct {
	HasLimit bool
	Limit    int
	Criteria map[string]Term
	Order    *Ordering
	Join     *Join
}

// Projection keeps (or, inverted, drops) the listed fields.
type Projection struct {
	Fields []string
	Invert bool
}

// Ordering sorts by Field (descending when Desc) or by Compare when set.
type Ordering struct {
	Field   string
	Desc    bool
	Compare Comparator
}

// Join matches LocalField of the left rows with ForeignField of Foreign's
// result.
type Join struct {
	Foreign      *Query
	LocalField   string
	ForeignField string
}

func newPlan() Plan {
	return Plan{Stages: []Stage{{}}}
}

// clone copies every level the builder mutates. Foreign queries of joins
// are referenced, not copied.
func (p Plan) clone() Plan {
	out := Plan{Stages: make([]Stage, len(p.Stages))}
	for i, st := range p.Stages {
		c := Stage{
			HasLimit: st.HasLimit,
			Limit:    st.Limit,
			Criteria: maps.Clone(st.Criteria),
		}
		if st.Order != nil {
			o := *st.Order
			c.Order = &o
		}
		if st.Join != nil {
			j := *st.Join
			c.Join = &j
		}
		out.Stages[i] = c
	}
	if p.Projection != nil {
		out.Projection = &Projection{
			Fields: slices.Clone(p.Projection.Fields),
			Invert: p.Projection.Invert,
		}
	}
	return out
}

func (st Stage) hasCriteria() bool {
	return len(st.Criteria) > 0
}

// explain returns the strategy the first stage would use without an index.
func (st Stage) explain() Strategy {
	switch {
	case st.Order != nil:
		return SortScan
	case st.HasLimit && st.hasCriteria():
		return FilterLimitScan
	case st.hasCriteria():
		return FilterScan
	case st.HasLimit:
		return LimitScan
	default:
		return FullScan
	}
}
