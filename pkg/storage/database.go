// Package storage implements the file-per-document storage engine.
//
// Every collection is a directory under the database root and every document
// a pretty-printed JSON file named after its key:
//
//	<root>/
//	├── movies/
//	│   ├── 0001.json
//	│   ├── 0002.json
//	│   └── .index/          (index artifacts, never listed as keys)
//	└── actors/
//	    └── kevin-bacon.json
//
// Integer keys are minted per collection from an in-memory counter that is
// seeded at Open from the largest integer key on disk. There is no locking
// between writers: concurrent writes to the same key are last-write-wins,
// writes to different keys are independent.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kartikbazzad/filedb/internal/codec"
	"github.com/kartikbazzad/filedb/internal/config"
	"github.com/kartikbazzad/filedb/internal/logger"
	"github.com/kartikbazzad/filedb/internal/metrics"
	"github.com/kartikbazzad/filedb/internal/pool"
	dberrors "github.com/kartikbazzad/filedb/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Database owns a root directory and the key counters of its collections.
type Database struct {
	root   string
	fs     afero.Fs
	cfg    *config.Config
	logger *logger.Logger
	pool   *pool.Pool

	mu      sync.Mutex
	maxKeys map[string]int
}

// Option customises Open.
type Option func(*Database)

// WithFs replaces the operating system filesystem.
func WithFs(fs afero.Fs) Option {
	return func(db *Database) { db.fs = fs }
}

// WithConfig sets the configuration. The Config is cloned; DataDir is
// overridden by the root passed to Open.
func WithConfig(cfg *config.Config) Option {
	return func(db *Database) { db.cfg = cfg.Clone() }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(db *Database) { db.logger = log }
}

// Open creates the root directory if needed and scans existing collections
// to seed the key counters.
func Open(root string, opts ...Option) (*Database, error) {
	db := &Database{
		root:    root,
		maxKeys: make(map[string]int),
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.fs == nil {
		db.fs = afero.NewOsFs()
	}
	if db.cfg == nil {
		db.cfg = config.DefaultConfig()
	}
	db.cfg.DataDir = root
	if db.logger == nil {
		db.logger = logger.Default()
	}
	db.logger = db.logger.With("root", root)

	if err := db.cfg.Validate(); err != nil {
		return nil, err
	}

	p, err := pool.New(db.cfg.Storage.Workers, db.logger)
	if err != nil {
		return nil, err
	}
	db.pool = p

	if err := db.initialize(); err != nil {
		_ = p.Release(time.Second)
		return nil, err
	}
	return db, nil
}

func (db *Database) initialize() error {
	if err := db.EnsureDatabase(); err != nil {
		return err
	}
	names, err := db.ListCollections()
	if err != nil {
		return err
	}
	for _, name := range names {
		keys, err := db.ListKeys(name)
		if err != nil {
			return err
		}
		db.maxKeys[name] = maxIntKey(keys)
	}
	db.logger.Debug("database opened", "collections", len(names))
	return nil
}

func maxIntKey(keys []Key) int {
	maxKey := 0
	for _, k := range keys {
		if n, ok := k.Int(); ok && n > maxKey {
			maxKey = n
		}
	}
	return maxKey
}

// Close releases the bulk worker pool.
func (db *Database) Close() error {
	return db.pool.Release(5 * time.Second)
}

// Root returns the database root path.
func (db *Database) Root() string {
	return db.root
}

// Fs returns the filesystem the database reads and writes through.
func (db *Database) Fs() afero.Fs {
	return db.fs
}

// Config returns the database configuration.
func (db *Database) Config() *config.Config {
	return db.cfg
}

// Logger returns the database logger.
func (db *Database) Logger() *logger.Logger {
	return db.logger
}

// CollectionPath returns the directory of a collection.
func (db *Database) CollectionPath(name string) string {
	return filepath.Join(db.root, name)
}

func (db *Database) docPath(name string, key Key) string {
	return filepath.Join(db.root, name, codec.KeyToFilename(string(key)))
}

// EnsureDatabase creates the root directory. It never fails because the
// directory already exists.
func (db *Database) EnsureDatabase() error {
	if err := db.fs.MkdirAll(db.root, db.cfg.Storage.DirMode); err != nil {
		return dberrors.New(dberrors.KindIO, "ensureDatabase", "", "", err)
	}
	return nil
}

// EnsureCollection creates a collection directory if it does not exist.
func (db *Database) EnsureCollection(name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return dberrors.New(dberrors.KindInvalid, "ensureCollection", name, "", err)
	}
	if err := db.fs.MkdirAll(db.CollectionPath(name), db.cfg.Storage.DirMode); err != nil {
		return dberrors.New(dberrors.KindIO, "ensureCollection", name, "", err)
	}
	return nil
}

// ListCollections returns the names of the collection directories, sorted.
func (db *Database) ListCollections() ([]string, error) {
	infos, err := afero.ReadDir(db.fs, db.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, dberrors.New(dberrors.KindIO, "listCollections", "", "", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if !info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			continue
		}
		names = append(names, info.Name())
	}
	slices.Sort(names)
	return names, nil
}

// ListKeys returns every key of a collection in ascending filename order.
func (db *Database) ListKeys(name string) ([]Key, error) {
	if err := db.EnsureCollection(name); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(db.fs, db.CollectionPath(name))
	if err != nil {
		return nil, dberrors.New(dberrors.KindIO, "listKeys", name, "", err)
	}
	keys := make([]Key, 0, len(infos))
	for _, info := range infos {
		if !info.Mode().IsRegular() || !codec.IsDocumentFile(info.Name()) {
			continue
		}
		keys = append(keys, Key(codec.FilenameToKey(info.Name())))
	}
	slices.Sort(keys)
	return keys, nil
}

// NextKey mints a fresh integer key for a collection. Keys are never reused,
// even after the documents holding them are removed.
func (db *Database) NextKey(name string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.maxKeys[name]++
	return db.maxKeys[name]
}

// observeKey raises the counter so that Insert never mints a key that an
// explicit write already used.
func (db *Database) observeKey(name string, key Key) {
	n, ok := key.Int()
	if !ok {
		return
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if n > db.maxKeys[name] {
		db.maxKeys[name] = n
	}
}

// Drop deletes every collection directory and resets all key counters.
func (db *Database) Drop(ctx context.Context) error {
	names, err := db.ListCollections()
	if err != nil {
		return err
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(db.cfg.Storage.Workers)
	for _, name := range names {
		name := name
		g.Go(func() error {
			if err := db.fs.RemoveAll(db.CollectionPath(name)); err != nil {
				return dberrors.New(dberrors.KindIO, "drop", name, "", err)
			}
			return nil
		})
	}
	err = g.Wait()
	metrics.ObserveOperation("drop", err)
	if err != nil {
		db.logger.Warn("drop failed", "error", err)
		return err
	}

	db.mu.Lock()
	db.maxKeys = make(map[string]int)
	db.mu.Unlock()

	db.logger.Info("database dropped", "collections", len(names))
	return nil
}

// Collection returns a handle bound to one collection.
func (db *Database) Collection(name string) *Collection {
	return &Collection{db: db, name: name}
}

func (db *Database) String() string {
	return fmt.Sprintf("filedb(%s)", db.root)
}
