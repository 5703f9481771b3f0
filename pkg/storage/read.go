package storage

import (
	"context"
	"os"

	"github.com/kartikbazzad/filedb/internal/codec"
	"github.com/kartikbazzad/filedb/internal/metrics"
	"github.com/kartikbazzad/filedb/internal/pool"
	dberrors "github.com/kartikbazzad/filedb/pkg/errors"
	"github.com/spf13/afero"
)

// read loads and parses one document file. Every document read in the engine
// goes through here.
func (db *Database) read(name string, key Key) (Document, error) {
	data, err := afero.ReadFile(db.fs, db.docPath(name, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dberrors.New(dberrors.KindNotFound, "find", name, string(key), err)
		}
		return nil, dberrors.New(dberrors.KindIO, "find", name, string(key), err)
	}
	metrics.DocumentsRead.WithLabelValues(name).Inc()

	doc, err := codec.Decode(data)
	if err != nil {
		return nil, dberrors.New(dberrors.KindParse, "find", name, string(key), err)
	}
	return doc, nil
}

// Find reads one document.
func (db *Database) Find(ctx context.Context, name string, key Key) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, dberrors.New(dberrors.KindInvalid, "find", name, string(key), err)
	}
	if err := db.EnsureCollection(name); err != nil {
		return nil, err
	}
	doc, err := db.read(name, key)
	metrics.ObserveOperation("find", err)
	return doc, err
}

// FindAll reads every document of a collection in key order. Reads run
// concurrently; the first failure fails the whole call.
func (db *Database) FindAll(ctx context.Context, name string) ([]Document, error) {
	keys, err := db.ListKeys(name)
	if err != nil {
		return nil, err
	}
	docs, err := pool.Map(ctx, db.pool, "findAll", len(keys), func(ctx context.Context, i int) (Document, error) {
		return db.read(name, keys[i])
	})
	metrics.ObserveOperation("findAll", err)
	return docs, err
}

// FindUntil reads documents one at a time in key order and stops as soon as
// stop reports true for the documents read so far.
func (db *Database) FindUntil(ctx context.Context, name string, stop StopFunc) ([]Document, error) {
	entries, err := db.Scan(ctx, name, Scan{Stop: stop})
	if err != nil {
		return nil, err
	}
	return Docs(entries), nil
}

// FilterAll reads every document and keeps those satisfying pred, in key
// order. Read failures are returned, never treated as non-matches.
func (db *Database) FilterAll(ctx context.Context, name string, pred Predicate) ([]Document, error) {
	docs, err := db.FindAll(ctx, name)
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return docs, nil
	}
	kept := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if pred(doc) {
			kept = append(kept, doc)
		}
	}
	return kept, nil
}

// FilterUntil reads documents one at a time in key order, keeps those
// satisfying pred, and stops once stop reports true for the kept documents.
func (db *Database) FilterUntil(ctx context.Context, name string, pred Predicate, stop StopFunc) ([]Document, error) {
	entries, err := db.Scan(ctx, name, Scan{Predicate: pred, Stop: stop})
	if err != nil {
		return nil, err
	}
	return Docs(entries), nil
}

// Scan is the sequential read primitive: keys are read strictly one after
// another in the given order (ascending key order when s.Keys is nil), and
// s.Stop is checked before every read so that no file past the stop point is
// opened.
func (db *Database) Scan(ctx context.Context, name string, s Scan) ([]Entry, error) {
	keys := s.Keys
	if keys == nil {
		var err error
		if keys, err = db.ListKeys(name); err != nil {
			return nil, err
		}
	} else if err := db.EnsureCollection(name); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0)
	docs := make([]Document, 0)
	for _, key := range keys {
		if s.Stop != nil && s.Stop(docs) {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := validateKey(key); err != nil {
			return nil, dberrors.New(dberrors.KindInvalid, "scan", name, string(key), err)
		}
		doc, err := db.read(name, key)
		if err != nil {
			if s.SkipMissing && dberrors.IsNotFound(err) {
				continue
			}
			metrics.ObserveOperation("scan", err)
			return nil, err
		}
		if s.Predicate != nil && !s.Predicate(doc) {
			continue
		}
		entries = append(entries, Entry{Key: key, Doc: doc})
		docs = append(docs, doc)
	}
	metrics.ObserveOperation("scan", nil)
	return entries, nil
}
