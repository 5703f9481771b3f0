package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/kartikbazzad/filedb/internal/codec"
	"github.com/kartikbazzad/filedb/internal/metrics"
	"github.com/kartikbazzad/filedb/internal/pool"
	dberrors "github.com/kartikbazzad/filedb/pkg/errors"
	"github.com/spf13/afero"
)

// WriteFileAtomic replaces path with data through a hidden temp file in the
// same directory followed by a rename, so readers see either the old or the
// new content. Hidden files are never listed as keys.
func WriteFileAtomic(fs afero.Fs, path string, data []byte, mode os.FileMode) error {
	tmp := filepath.Join(filepath.Dir(path), "."+uuid.NewString()+".tmp")
	if err := afero.WriteFile(fs, tmp, data, mode); err != nil {
		_ = fs.Remove(tmp)
		return err
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return err
	}
	return nil
}

func (db *Database) write(op, name string, key Key, doc Document) (Entry, error) {
	if err := validateKey(key); err != nil {
		return Entry{}, dberrors.New(dberrors.KindInvalid, op, name, string(key), err)
	}
	if err := db.EnsureCollection(name); err != nil {
		return Entry{}, err
	}
	data, err := codec.Encode(doc)
	if err != nil {
		return Entry{}, dberrors.New(dberrors.KindParse, op, name, string(key), err)
	}
	if err := WriteFileAtomic(db.fs, db.docPath(name, key), data, db.cfg.Storage.FileMode); err != nil {
		return Entry{}, dberrors.New(dberrors.KindIO, op, name, string(key), err)
	}
	metrics.DocumentsWritten.WithLabelValues(name).Inc()
	return Entry{Key: key, Doc: doc}, nil
}

// Insert writes doc under a freshly minted integer key.
func (db *Database) Insert(ctx context.Context, name string, doc Document) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	if err := ValidateCollectionName(name); err != nil {
		return Entry{}, dberrors.New(dberrors.KindInvalid, "insert", name, "", err)
	}
	key := IntKey(db.NextKey(name))
	e, err := db.write("insert", name, key, doc)
	metrics.ObserveOperation("insert", err)
	return e, err
}

// InsertAll inserts docs concurrently. Results follow input order; on the
// first failure the documents already written stay on disk.
func (db *Database) InsertAll(ctx context.Context, name string, docs []Document) ([]Entry, error) {
	entries, err := pool.Map(ctx, db.pool, "insertAll", len(docs), func(ctx context.Context, i int) (Entry, error) {
		return db.Insert(ctx, name, docs[i])
	})
	if err != nil {
		db.logger.Warn("insertAll failed", "collection", name, "error", err)
	}
	return entries, err
}

// InsertWithKey writes doc under a caller-chosen key and fails with
// ErrKeyExists if a document already uses it.
func (db *Database) InsertWithKey(ctx context.Context, name string, key Key, doc Document) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	if err := validateKey(key); err != nil {
		return Entry{}, dberrors.New(dberrors.KindInvalid, "insertWithKey", name, string(key), err)
	}
	if err := db.EnsureCollection(name); err != nil {
		return Entry{}, err
	}
	exists, err := afero.Exists(db.fs, db.docPath(name, key))
	if err != nil {
		return Entry{}, dberrors.New(dberrors.KindIO, "insertWithKey", name, string(key), err)
	}
	if exists {
		return Entry{}, dberrors.New(dberrors.KindExists, "insertWithKey", name, string(key), dberrors.ErrKeyExists)
	}
	db.observeKey(name, key)
	e, err := db.write("insertWithKey", name, key, doc)
	metrics.ObserveOperation("insertWithKey", err)
	return e, err
}

// Update overwrites the document at key. The key does not have to exist.
func (db *Database) Update(ctx context.Context, name string, key Key, doc Document) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	db.observeKey(name, key)
	e, err := db.write("update", name, key, doc)
	metrics.ObserveOperation("update", err)
	return e, err
}

// Remove deletes the document at key and returns what it contained.
func (db *Database) Remove(ctx context.Context, name string, key Key) (Document, error) {
	doc, err := db.Find(ctx, name, key)
	if err != nil {
		return nil, err
	}
	if err := db.fs.Remove(db.docPath(name, key)); err != nil {
		kind := dberrors.KindIO
		if dberrors.NewClassifier().Classify(err) == dberrors.KindNotFound {
			kind = dberrors.KindNotFound
		}
		err = dberrors.New(kind, "remove", name, string(key), err)
		metrics.ObserveOperation("remove", err)
		return nil, err
	}
	metrics.ObserveOperation("remove", nil)
	return doc, nil
}

// RemoveAll removes every document of a collection concurrently and returns
// them in key order. Index artifacts are left in place.
func (db *Database) RemoveAll(ctx context.Context, name string) ([]Document, error) {
	keys, err := db.ListKeys(name)
	if err != nil {
		return nil, err
	}
	docs, err := pool.Map(ctx, db.pool, "removeAll", len(keys), func(ctx context.Context, i int) (Document, error) {
		return db.Remove(ctx, name, keys[i])
	})
	if err != nil {
		db.logger.Warn("removeAll failed", "collection", name, "error", err)
	}
	return docs, err
}
