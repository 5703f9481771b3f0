package storage

import "context"

// Collection is a Database view with the collection name bound. Each method
// forwards to the Database method of the same name.
type Collection struct {
	db   *Database
	name string
}

func (c *Collection) Name() string        { return c.name }
func (c *Collection) Database() *Database { return c.db }

func (c *Collection) EnsureCollection() error {
	return c.db.EnsureCollection(c.name)
}

func (c *Collection) ListKeys() ([]Key, error) {
	return c.db.ListKeys(c.name)
}

func (c *Collection) NextKey() int {
	return c.db.NextKey(c.name)
}

func (c *Collection) Find(ctx context.Context, key Key) (Document, error) {
	return c.db.Find(ctx, c.name, key)
}

func (c *Collection) FindAll(ctx context.Context) ([]Document, error) {
	return c.db.FindAll(ctx, c.name)
}

func (c *Collection) FindUntil(ctx context.Context, stop StopFunc) ([]Document, error) {
	return c.db.FindUntil(ctx, c.name, stop)
}

func (c *Collection) FilterAll(ctx context.Context, pred Predicate) ([]Document, error) {
	return c.db.FilterAll(ctx, c.name, pred)
}

func (c *Collection) FilterUntil(ctx context.Context, pred Predicate, stop StopFunc) ([]Document, error) {
	return c.db.FilterUntil(ctx, c.name, pred, stop)
}

func (c *Collection) Scan(ctx context.Context, s Scan) ([]Entry, error) {
	return c.db.Scan(ctx, c.name, s)
}

func (c *Collection) Insert(ctx context.Context, doc Document) (Entry, error) {
	return c.db.Insert(ctx, c.name, doc)
}

func (c *Collection) InsertAll(ctx context.Context, docs []Document) ([]Entry, error) {
	return c.db.InsertAll(ctx, c.name, docs)
}

func (c *Collection) InsertWithKey(ctx context.Context, key Key, doc Document) (Entry, error) {
	return c.db.InsertWithKey(ctx, c.name, key, doc)
}

func (c *Collection) Update(ctx context.Context, key Key, doc Document) (Entry, error) {
	return c.db.Update(ctx, c.name, key, doc)
}

func (c *Collection) Remove(ctx context.Context, key Key) (Document, error) {
	return c.db.Remove(ctx, c.name, key)
}

func (c *Collection) RemoveAll(ctx context.Context) ([]Document, error) {
	return c.db.RemoveAll(ctx, c.name)
}
