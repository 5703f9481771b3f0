package query

import (
	"context"

	"github.com/kartikbazzad/filedb/internal/codec"
	"github.com/kartikbazzad/filedb/pkg/storage"
)

// Merge returns a new document holding the fields of local overlaid with the
// fields of foreign. Neither input is modified.
func Merge(local, foreign storage.Document) storage.Document {
	out := make(storage.Document, len(local)+len(foreign))
	for k, v := range local {
		out[k] = v
	}
	for k, v := range foreign {
		out[k] = v
	}
	return out
}

// join runs the foreign query once, groups its rows by foreign field, and
// emits one merged row per matching pair. Output follows left order, then
// foreign order within a left row. Rows missing the join field never match.
func join(ctx context.Context, left []storage.Document, j *Join, visiting map[*Query]bool) ([]storage.Document, error) {
	right, err := j.Foreign.exec(ctx, visiting)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]storage.Document, len(right))
	for _, r := range right {
		v, ok := r[j.ForeignField]
		if !ok {
			continue
		}
		k, err := codec.Canonical(v)
		if err != nil {
			continue
		}
		groups[k] = append(groups[k], r)
	}

	out := make([]storage.Document, 0, len(left))
	for _, l := range left {
		v, ok := l[j.LocalField]
		if !ok {
			continue
		}
		k, err := codec.Canonical(v)
		if err != nil {
			continue
		}
		for _, r := range groups[k] {
			out = append(out, Merge(l, r))
		}
	}
	return out, nil
}
