// Package index builds and reads secondary equality indexes.
//
// An index maps the canonical JSON encoding of one field's values to the
// ascending list of keys whose document holds exactly that value. It is a
// snapshot: writes after AddIndex are not reflected until the index is
// rebuilt.
//
// # Disk Layout
//
//	<root>/<collection>/.index/
//	├── {{ FIELD }}.idx      (JSON, optionally snappy-framed)
//	└── {{ FIELD }}.bloom    (bloom filter over the indexed values)
//
// FIELD is the path-escaped field name. Both files are replaced whole
// through a rename. The bloom sidecar is written before the .idx file and
// only consulted when the .idx file exists, so a lookup for a value that was
// never indexed is answered without reading the .idx file.
package index

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/goccy/go-json"
	"github.com/golang/snappy"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kartikbazzad/filedb/internal/codec"
	"github.com/kartikbazzad/filedb/internal/config"
	"github.com/kartikbazzad/filedb/internal/logger"
	"github.com/kartikbazzad/filedb/internal/metrics"
	dberrors "github.com/kartikbazzad/filedb/pkg/errors"
	"github.com/kartikbazzad/filedb/pkg/storage"
	"github.com/spf13/afero"
)

const (
	idxExt   = ".idx"
	bloomExt = ".bloom"

	// Stream identifier chunk of the snappy framing format.
	snappyMagic = "\xff\x06\x00\x00sNaPpY"
)

// Index is the persisted value→keys mapping of one (collection, field).
type Index struct {
	Collection string                   `json:"collection"`
	Field      string                   `json:"field"`
	BuiltAt    time.Time                `json:"built_at"`
	Documents  int                      `json:"documents"`
	Entries    map[string][]storage.Key `json:"entries"`
}

// Lookup returns the keys recorded for value, ascending. The result is never
// nil. A string also finds the number, boolean or null it spells, so "2003"
// returns the documents holding 2003 as well as those holding "2003".
func (idx *Index) Lookup(value any) ([]storage.Key, error) {
	candidates, err := lookupKeys(value)
	if err != nil {
		return nil, fmt.Errorf("%w: unencodable index value: %v", dberrors.ErrInvalidField, err)
	}
	return idx.collect(candidates), nil
}

func (idx *Index) collect(candidates []string) []storage.Key {
	keys := []storage.Key{}
	for _, c := range candidates {
		keys = append(keys, idx.Entries[c]...)
	}
	if len(candidates) > 1 {
		slices.Sort(keys)
		keys = slices.Compact(keys)
	}
	return keys
}

// lookupKeys returns the entry names value resolves to: its canonical
// encoding and, for a string spelling a scalar literal, that literal.
func lookupKeys(value any) ([]string, error) {
	k, err := codec.Canonical(value)
	if err != nil {
		return nil, err
	}
	candidates := []string{k}
	if s, ok := value.(string); ok && isScalarLiteral(s) {
		candidates = append(candidates, s)
	}
	return candidates, nil
}

func isScalarLiteral(s string) bool {
	if s == "" || s != strings.TrimSpace(s) {
		return false
	}
	switch s[0] {
	case '"', '{', '[':
		return false
	}
	return json.Valid([]byte(s))
}

type cacheKey struct {
	collection string
	field      string
}

type cachedIndex struct {
	idx     *Index
	modTime time.Time
	size    int64
}

// Store reads and writes the index artifacts of one Database.
type Store struct {
	db     *storage.Database
	fs     afero.Fs
	cfg    config.IndexConfig
	logger *logger.Logger
	cache  *lru.Cache[cacheKey, cachedIndex]
}

// Option customises NewStore.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Store) { s.logger = log }
}

// WithIndexConfig overrides the index section of the database config.
func WithIndexConfig(cfg config.IndexConfig) Option {
	return func(s *Store) { s.cfg = cfg }
}

// NewStore creates an index store over db.
func NewStore(db *storage.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		fs:     db.Fs(),
		cfg:    db.Config().Index,
		logger: db.Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.CacheSize > 0 {
		// lru.New only fails for non-positive sizes.
		s.cache, _ = lru.New[cacheKey, cachedIndex](s.cfg.CacheSize)
	}
	return s
}

// AddIndex builds an index for field over collection on db.
func AddIndex(ctx context.Context, db *storage.Database, collection, field string) error {
	return NewStore(db).AddIndex(ctx, collection, field)
}

// GetIndexes returns the keys whose field equals value. ok is false when no
// index has been built for field; that is not an error.
func GetIndexes(ctx context.Context, db *storage.Database, collection, field string, value any) (keys []storage.Key, ok bool, err error) {
	return NewStore(db).GetIndexes(ctx, collection, field, value)
}

func (s *Store) dir(collection string) string {
	return filepath.Join(s.db.CollectionPath(collection), s.cfg.Dir)
}

func (s *Store) paths(collection, field string) (idxPath, bloomPath string) {
	base := filepath.Join(s.dir(collection), escapeField(field))
	return base + idxExt, base + bloomExt
}

// escapeField turns a field name into one file name component. Dots are
// escaped too so "." and ".." stay inside the index directory.
func escapeField(field string) string {
	return strings.ReplaceAll(url.PathEscape(field), ".", "%2E")
}

// AddIndex scans collection once, in key order, and persists the index for
// field, replacing any earlier one. Documents without the field are not
// indexed.
func (s *Store) AddIndex(ctx context.Context, collection, field string) (err error) {
	defer func() { metrics.IndexBuilds.WithLabelValues(metrics.Status(err)).Inc() }()

	if field == "" {
		return dberrors.New(dberrors.KindInvalid, "addIndex", collection, "", dberrors.ErrInvalidField)
	}
	started := time.Now()

	entries, err := s.db.Scan(ctx, collection, storage.Scan{})
	if err != nil {
		return err
	}

	idx := &Index{
		Collection: collection,
		Field:      field,
		BuiltAt:    time.Now().UTC(),
		Documents:  len(entries),
		Entries:    make(map[string][]storage.Key),
	}
	for _, e := range entries {
		v, exists := e.Doc[field]
		if !exists {
			continue
		}
		k, err := codec.Canonical(v)
		if err != nil {
			return dberrors.New(dberrors.KindParse, "addIndex", collection, string(e.Key), err)
		}
		idx.Entries[k] = append(idx.Entries[k], e.Key)
	}

	if err := s.persist(idx); err != nil {
		return dberrors.New(dberrors.KindIO, "addIndex", collection, "", err)
	}

	if s.cache != nil {
		s.cache.Remove(cacheKey{collection, field})
	}
	s.logger.Info("index built",
		"collection", collection,
		"field", field,
		"documents", idx.Documents,
		"values", len(idx.Entries),
		"elapsed", time.Since(started))
	return nil
}

func (s *Store) persist(idx *Index) error {
	if err := s.fs.MkdirAll(s.dir(idx.Collection), s.db.Config().Storage.DirMode); err != nil {
		return err
	}
	idxPath, bloomPath := s.paths(idx.Collection, idx.Field)
	mode := s.db.Config().Storage.FileMode

	if s.cfg.Bloom.Enabled {
		filter := bloom.NewWithEstimates(uint(max(len(idx.Entries), 1)), s.cfg.Bloom.FalsePositiveRate)
		for value := range idx.Entries {
			filter.AddString(value)
		}
		var buf bytes.Buffer
		if _, err := filter.WriteTo(&buf); err != nil {
			return fmt.Errorf("encode bloom filter: %w", err)
		}
		if err := storage.WriteFileAtomic(s.fs, bloomPath, buf.Bytes(), mode); err != nil {
			return err
		}
	} else if err := s.fs.Remove(bloomPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	data, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	if s.cfg.Compression == "snappy" {
		var buf bytes.Buffer
		w := snappy.NewBufferedWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		data = buf.Bytes()
	}
	return storage.WriteFileAtomic(s.fs, idxPath, data, mode)
}

// GetIndexes returns the keys, ascending, whose document had field equal to
// value when the index was built. ok is false when there is no index for
// field.
func (s *Store) GetIndexes(ctx context.Context, collection, field string, value any) (keys []storage.Key, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	candidates, err := lookupKeys(value)
	if err != nil {
		return nil, false, dberrors.New(dberrors.KindInvalid, "getIndexes", collection, "", err)
	}

	idxPath, bloomPath := s.paths(collection, field)
	info, err := s.fs.Stat(idxPath)
	if err != nil {
		if os.IsNotExist(err) {
			metrics.IndexLookups.WithLabelValues("no_index").Inc()
			return nil, false, nil
		}
		return nil, false, dberrors.New(dberrors.KindIO, "getIndexes", collection, "", err)
	}

	if idx, hit := s.cached(collection, field, info); hit {
		metrics.IndexLookups.WithLabelValues("hit").Inc()
		return idx.collect(candidates), true, nil
	}

	if s.cfg.Bloom.Enabled {
		rejected, err := s.bloomRejects(bloomPath, candidates)
		if err != nil {
			return nil, false, dberrors.New(dberrors.KindIO, "getIndexes", collection, "", err)
		}
		if rejected {
			metrics.IndexLookups.WithLabelValues("bloom_reject").Inc()
			return []storage.Key{}, true, nil
		}
	}

	idx, err := s.load(idxPath)
	if err != nil {
		return nil, false, dberrors.New(dberrors.KindParse, "getIndexes", collection, "", err)
	}
	if s.cache != nil {
		s.cache.Add(cacheKey{collection, field}, cachedIndex{idx: idx, modTime: info.ModTime(), size: info.Size()})
	}
	metrics.IndexLookups.WithLabelValues("hit").Inc()
	return idx.collect(candidates), true, nil
}

// Load returns the whole index for field. ok is false when none exists.
func (s *Store) Load(collection, field string) (idx *Index, ok bool, err error) {
	idxPath, _ := s.paths(collection, field)
	info, err := s.fs.Stat(idxPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if idx, hit := s.cached(collection, field, info); hit {
		return idx, true, nil
	}
	idx, err = s.load(idxPath)
	if err != nil {
		return nil, false, err
	}
	return idx, true, nil
}

func (s *Store) cached(collection, field string, info os.FileInfo) (*Index, bool) {
	if s.cache == nil {
		return nil, false
	}
	c, ok := s.cache.Get(cacheKey{collection, field})
	if !ok {
		return nil, false
	}
	if !c.modTime.Equal(info.ModTime()) || c.size != info.Size() {
		s.cache.Remove(cacheKey{collection, field})
		return nil, false
	}
	return c.idx, true
}

// bloomRejects reports whether the sidecar rules out every candidate.
func (s *Store) bloomRejects(path string, candidates []string) (bool, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	filter := &bloom.BloomFilter{}
	if _, err := filter.ReadFrom(f); err != nil {
		// A torn or foreign sidecar only costs the shortcut.
		s.logger.Warn("ignoring unreadable bloom filter", "path", path, "error", err)
		return false, nil
	}
	for _, c := range candidates {
		if filter.TestString(c) {
			return false, nil
		}
	}
	return true, nil
}

func (s *Store) load(path string) (*Index, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(data, []byte(snappyMagic)) {
		data, err = io.ReadAll(snappy.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dberrors.ErrParse, err)
		}
	}
	idx := &Index{}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("%w: %v", dberrors.ErrParse, err)
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string][]storage.Key)
	}
	return idx, nil
}

// HasIndex reports whether an index exists for field.
func (s *Store) HasIndex(collection, field string) (bool, error) {
	idxPath, _ := s.paths(collection, field)
	return afero.Exists(s.fs, idxPath)
}

// Indexes lists the indexed fields of collection, sorted.
func (s *Store) Indexes(collection string) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.dir(collection))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	fields := make([]string, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasSuffix(name, idxExt) {
			continue
		}
		field, err := url.PathUnescape(strings.TrimSuffix(name, idxExt))
		if err != nil {
			continue
		}
		fields = append(fields, field)
	}
	slices.Sort(fields)
	return fields, nil
}

// DropIndex deletes the artifacts for field. Dropping a missing index is not
// an error.
func (s *Store) DropIndex(collection, field string) error {
	idxPath, bloomPath := s.paths(collection, field)
	for _, p := range []string{idxPath, bloomPath} {
		if err := s.fs.Remove(p); err != nil && !os.IsNotExist(err) {
			return dberrors.New(dberrors.KindIO, "dropIndex", collection, "", err)
		}
	}
	if s.cache != nil {
		s.cache.Remove(cacheKey{collection, field})
	}
	s.logger.Info("index dropped", "collection", collection, "field", field)
	return nil
}
