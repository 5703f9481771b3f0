package query

import (
	"strings"

	"github.com/kartikbazzad/filedb/pkg/storage"
)

// parseProjection reads a whitespace separated field list. A leading "-"
// turns the list into fields to drop. An empty list clears the projection.
func parseProjection(spec string) *Projection {
	spec = strings.TrimSpace(spec)
	invert := false
	if rest, ok := strings.CutPrefix(spec, "-"); ok {
		invert = true
		spec = rest
	}
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return nil
	}
	return &Projection{Fields: fields, Invert: invert}
}

func (p *Projection) apply(doc storage.Document) storage.Document {
	if p.Invert {
		out := make(storage.Document, len(doc))
		for k, v := range doc {
			out[k] = v
		}
		for _, f := range p.Fields {
			delete(out, f)
		}
		return out
	}
	out := make(storage.Document, len(p.Fields))
	for _, f := range p.Fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

func project(docs []storage.Document, p *Projection) []storage.Document {
	if p == nil {
		return docs
	}
	out := make([]storage.Document, len(docs))
	for i, d := range docs {
		out[i] = p.apply(d)
	}
	return out
}
