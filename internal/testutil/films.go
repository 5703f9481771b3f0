// Package testutil holds fixtures and instrumentation shared by the package
// tests.
package testutil

import (
	"context"
	"maps"
	"testing"

	"github.com/kartikbazzad/filedb/internal/config"
	"github.com/kartikbazzad/filedb/internal/logger"
	"github.com/kartikbazzad/filedb/pkg/storage"
	"github.com/spf13/afero"
)

// Collection names used by the film fixture.
const (
	MoviesCollection = "movies"
	ActorsCollection = "actors"
	RolesCollection  = "roles"
)

var movies = []storage.Document{
	{"id": 10920, "name": "Aliens", "year": 1986, "rank": 8.2},
	{"id": 30959, "name": "Batman Begins", "year": 2005, "rank": nil},
	{"id": 124110, "name": "Garden State", "year": 2004, "rank": 8.3},
	{"id": 130128, "name": "Godfather, The", "year": 1972, "rank": 9},
	{"id": 257264, "name": "Planes, Trains & Automobiles", "year": 1987, "rank": 7.2},
	{"id": 112290, "name": "Fight Club", "year": 1999, "rank": 8.5},
	{"id": 300229, "name": "Shrek", "year": 2001, "rank": 8.1},
	{"id": 210511, "name": "Mystic River", "year": 2003, "rank": 8.1},
	{"id": 313459, "name": "Stir of Echoes", "year": 1999, "rank": 7.0},
	{"id": 18979, "name": "Apollo 13", "year": 1995, "rank": 7.5},
	{"id": 306032, "name": "Snatch.", "year": 2000, "rank": 7.9},
	{"id": 17173, "name": "Animal House", "year": 1978, "rank": 7.5},
	{"id": 115000, "name": "Footloose", "year": 1984, "rank": 5.8},
	{"id": 111813, "name": "Few Good Men, A", "year": 1992, "rank": 7.5},
	{"id": 113312, "name": "Flatliners", "year": 1990, "rank": 6.1},
	{"id": 207992, "name": "Matrix, The", "year": 1999, "rank": 8.5},
	{"id": 209158, "name": "Memento", "year": 2000, "rank": 8.7},
	{"id": 333856, "name": "Two Towers, The", "year": 2002, "rank": 8.8},
	{"id": 254943, "name": "Pianist, The", "year": 2002, "rank": 8.5},
	{"id": 48100, "name": "Cast Away", "year": 2000, "rank": 7.5},
	{"id": 238636, "name": "Ocean's Eleven", "year": 2001, "rank": 7.5},
	{"id": 310455, "name": "Sixth Sense, The", "year": 1999, "rank": 8.1},
	{"id": 267038, "name": "Pulp Fiction", "year": 1994, "rank": 8.9},
	{"id": 276217, "name": "Reservoir Dogs", "year": 1992, "rank": 8.3},
	{"id": 147603, "name": "Heat", "year": 1995, "rank": 8.0},
	{"id": 333316, "name": "Titanic", "year": 1997, "rank": 6.9},
	{"id": 46169, "name": "Braveheart", "year": 1995, "rank": 8.3},
	{"id": 313474, "name": "Star Wars", "year": 1977, "rank": 8.8},
	{"id": 26461, "name": "Back to the Future", "year": 1985, "rank": 8.2},
	{"id": 92616, "name": "Die Hard", "year": 1988, "rank": 8.1},
	{"id": 134079, "name": "Goodfellas", "year": 1990, "rank": 8.7},
	{"id": 339962, "name": "Unforgiven", "year": 1992, "rank": 8.1},
	{"id": 171179, "name": "Jaws", "year": 1975, "rank": 8.0},
	{"id": 34081, "name": "Big Lebowski, The", "year": 1998, "rank": 8.1},
	{"id": 196046, "name": "Lost in Translation", "year": 2003, "rank": 7.9},
	{"id": 176712, "name": "Kill Bill: Vol. 1", "year": 2003, "rank": 8.2},
}

var actors = []storage.Document{
	{"id": 22591, "first_name": "Kevin", "last_name": "Bacon"},
	{"id": 499512, "first_name": "Sigourney", "last_name": "Weaver"},
	{"id": 192657, "first_name": "Tom", "last_name": "Hanks"},
	{"id": 376249, "first_name": "Brad", "last_name": "Pitt"},
	{"id": 450012, "first_name": "Kevin", "last_name": "Spacey"},
	{"id": 231712, "first_name": "Jennifer", "last_name": "Connelly"},
	{"id": 231713, "first_name": "Jennifer", "last_name": "Lopez"},
	{"id": 119006, "first_name": "Edward", "last_name": "Norton"},
	{"id": 299901, "first_name": "Sean", "last_name": "Penn"},
	{"id": 34303, "first_name": "Michael", "last_name": "Biehn"},
}

var roles = []storage.Document{
	{"actor_id": 22591, "movie_id": 17173, "role": "Chip Diller"},
	{"actor_id": 499512, "movie_id": 10920, "role": "Ellen Ripley"},
	{"actor_id": 34303, "movie_id": 10920, "role": "Cpl. Dwayne Hicks"},
	{"actor_id": 22591, "movie_id": 18979, "role": "Jack Swigert"},
	{"actor_id": 192657, "movie_id": 18979, "role": "Jim Lovell"},
	{"actor_id": 376249, "movie_id": 112290, "role": "Tyler Durden"},
	{"actor_id": 119006, "movie_id": 112290, "role": "Narrator"},
	{"actor_id": 22591, "movie_id": 111813, "role": "Capt. Jack Ross"},
	{"actor_id": 22591, "movie_id": 115000, "role": "Ren McCormack"},
	{"actor_id": 192657, "movie_id": 48100, "role": "Chuck Noland"},
	{"actor_id": 376249, "movie_id": 306032, "role": "Mickey O'Neil"},
	{"actor_id": 376249, "movie_id": 238636, "role": "Rusty Ryan"},
	{"actor_id": 22591, "movie_id": 113312, "role": "David Labraccio"},
	{"actor_id": 450012, "movie_id": 147603, "role": "Det. Drucker"},
	{"actor_id": 299901, "movie_id": 210511, "role": "Jimmy Markum"},
	{"actor_id": 22591, "movie_id": 313459, "role": "Tom Witzky"},
	{"actor_id": 22591, "movie_id": 210511, "role": "Sean Devine"},
	{"actor_id": 231712, "movie_id": 306032, "role": "Extra"},
}

// Movies returns the 36 fixture movies in insertion order. Seeded into an
// empty collection, movie i is stored under key IntKey(i+1).
func Movies() []storage.Document { return cloneAll(movies) }

// Actors returns the fixture actors in insertion order.
func Actors() []storage.Document { return cloneAll(actors) }

// Roles returns the fixture roles in insertion order.
func Roles() []storage.Document { return cloneAll(roles) }

func cloneAll(docs []storage.Document) []storage.Document {
	out := make([]storage.Document, len(docs))
	for i, d := range docs {
		out[i] = maps.Clone(d)
	}
	return out
}

// OpenDB opens a database in a fresh temp directory. A nil fs uses the OS
// filesystem.
func OpenDB(t testing.TB, fs afero.Fs, mutate ...func(*config.Config)) *storage.Database {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Workers = 4
	for _, m := range mutate {
		m(cfg)
	}
	opts := []storage.Option{storage.WithConfig(cfg), storage.WithLogger(logger.Discard())}
	if fs != nil {
		opts = append(opts, storage.WithFs(fs))
	}
	db, err := storage.Open(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Seed inserts docs one at a time so keys follow slice order.
func Seed(t testing.TB, db *storage.Database, collection string, docs []storage.Document) {
	t.Helper()
	ctx := context.Background()
	for i, doc := range docs {
		if _, err := db.Insert(ctx, collection, doc); err != nil {
			t.Fatalf("seed %s[%d]: %v", collection, i, err)
		}
	}
}

// SeedFilms seeds the movies, actors and roles collections.
func SeedFilms(t testing.TB, db *storage.Database) {
	t.Helper()
	Seed(t, db, MoviesCollection, Movies())
	Seed(t, db, ActorsCollection, Actors())
	Seed(t, db, RolesCollection, Roles())
}
