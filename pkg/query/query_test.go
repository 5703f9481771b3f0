package query

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/kartikbazzad/filedb/internal/codec"
	"github.com/kartikbazzad/filedb/internal/testutil"
	dberrors "github.com/kartikbazzad/filedb/pkg/errors"
	"github.com/kartikbazzad/filedb/pkg/storage"
)

func filmDB(t *testing.T) *storage.Database {
	t.Helper()
	db := testutil.OpenDB(t, nil)
	testutil.SeedFilms(t, db)
	return db
}

func exec(t *testing.T, q *Query) []storage.Document {
	t.Helper()
	docs, err := q.Exec(context.Background())
	if err != nil {
		t.Fatalf("Exec %s: %v", q, err)
	}
	return docs
}

func count(t *testing.T, q *Query) int {
	t.Helper()
	n, err := q.Count(context.Background())
	if err != nil {
		t.Fatalf("Count %s: %v", q, err)
	}
	return n
}

func sameDoc(t *testing.T, got, want storage.Document) bool {
	t.Helper()
	a, err := codec.Canonical(got)
	if err != nil {
		t.Fatal(err)
	}
	b, err := codec.Canonical(want)
	if err != nil {
		t.Fatal(err)
	}
	return a == b
}

func hasKeys(doc storage.Document, keys ...string) bool {
	got := slices.Sorted(maps.Keys(doc))
	slices.Sort(keys)
	return slices.Equal(got, keys)
}

func names(docs []storage.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i], _ = d["name"].(string)
	}
	return out
}

func TestExec_AllInKeyOrder(t *testing.T) {
	db := filmDB(t)
	docs := exec(t, New(db, testutil.MoviesCollection))

	movies := testutil.Movies()
	if len(docs) != len(movies) {
		t.Fatalf("got %d documents, want %d", len(docs), len(movies))
	}
	for i := range movies {
		if !sameDoc(t, docs[i], movies[i]) {
			t.Fatalf("docs[%d] = %v, want %v", i, docs[i], movies[i])
		}
	}
	if n := count(t, New(db, testutil.MoviesCollection)); n != 36 {
		t.Errorf("Count = %d, want 36", n)
	}
}

func TestExec_EmptyCollection(t *testing.T) {
	db := filmDB(t)
	docs := exec(t, New(db, "nothing-here").Where(Criteria{"year": 1999}))
	if len(docs) != 0 {
		t.Errorf("got %v", docs)
	}
}

func TestLimit(t *testing.T) {
	db := filmDB(t)

	if n := count(t, New(db, testutil.MoviesCollection).Limit(5)); n != 5 {
		t.Errorf("limit 5 count = %d", n)
	}
	if n := count(t, New(db, testutil.MoviesCollection).Limit(500)); n != 36 {
		t.Errorf("limit above size count = %d", n)
	}
	docs := exec(t, New(db, testutil.MoviesCollection).Limit(1))
	if len(docs) != 1 || docs[0]["name"] != "Aliens" {
		t.Errorf("limit 1 = %v", docs)
	}
}

func TestLimit_ReadsAsFewFilesAsPossible(t *testing.T) {
	fs := testutil.NewCountingFs(nil)
	db := testutil.OpenDB(t, fs)
	testutil.SeedFilms(t, db)
	fs.Reset()

	if n := count(t, New(db, testutil.MoviesCollection).Limit(2)); n != 2 {
		t.Fatalf("count = %d", n)
	}
	if fs.Reads() != 2 {
		t.Errorf("read %d files, want 2", fs.Reads())
	}
}

func TestLimit_Invalid(t *testing.T) {
	db := filmDB(t)
	for _, n := range []int{0, -3} {
		q := New(db, testutil.MoviesCollection).Limit(n)
		if _, err := q.Exec(context.Background()); !errors.Is(err, dberrors.ErrInvalidLimit) {
			t.Errorf("Limit(%d): got %v, want ErrInvalidLimit", n, err)
		}
		// The query stays usable once the limit is fixed.
		if got := count(t, q.Limit(3)); got != 3 {
			t.Errorf("after fixing the limit count = %d", got)
		}
	}
}

func TestIndependentQueries(t *testing.T) {
	db := filmDB(t)
	all := exec(t, New(db, testutil.MoviesCollection))

	five := New(db, testutil.MoviesCollection).Limit(5)
	ten := New(db, testutil.MoviesCollection).Limit(10)
	a, b := exec(t, five), exec(t, ten)
	if len(a) != 5 || len(b) != 10 {
		t.Fatalf("lengths %d and %d, want 5 and 10", len(a), len(b))
	}
	for i := range b {
		if !sameDoc(t, b[i], all[i]) || (i < 5 && !sameDoc(t, a[i], all[i])) {
			t.Fatalf("result %d is not a prefix of the full scan", i)
		}
	}
}

func TestSameQueryRunsTwice(t *testing.T) {
	db := filmDB(t)
	q := New(db, testutil.MoviesCollection).Limit(10)
	first := count(t, q)
	second := count(t, q)
	if first != 10 || first != second {
		t.Errorf("counts %d and %d", first, second)
	}
}

func TestQueryCanBeAlteredAndRunAgain(t *testing.T) {
	db := filmDB(t)
	q := New(db, testutil.MoviesCollection).Limit(1)

	docs := exec(t, q)
	want := storage.Document{"id": 10920, "name": "Aliens", "year": 1986, "rank": 8.2}
	if len(docs) != 1 || !sameDoc(t, docs[0], want) {
		t.Fatalf("first run = %v", docs)
	}

	docs = exec(t, q.Select("name"))
	if len(docs) != 1 || !sameDoc(t, docs[0], storage.Document{"name": "Aliens"}) {
		t.Errorf("second run = %v", docs)
	}
}

func TestSelect(t *testing.T) {
	db := filmDB(t)

	docs := exec(t, New(db, testutil.MoviesCollection).Select("name"))
	if len(docs) != 36 {
		t.Fatalf("got %d docs", len(docs))
	}
	for i, d := range docs {
		if !hasKeys(d, "name") {
			t.Fatalf("docs[%d] keys = %v", i, slices.Collect(maps.Keys(d)))
		}
	}

	docs = exec(t, New(db, testutil.MoviesCollection).Select("name year"))
	if !hasKeys(docs[0], "name", "year") || !hasKeys(docs[35], "name", "year") {
		t.Errorf("multi-field select = %v / %v", docs[0], docs[35])
	}

	docs = exec(t, New(db, testutil.MoviesCollection).Select("-year"))
	for i, d := range docs {
		if !hasKeys(d, "id", "name", "rank") {
			t.Fatalf("inverted docs[%d] = %v", i, d)
		}
	}

	docs = exec(t, New(db, testutil.MoviesCollection).Select("year").Limit(5))
	if len(docs) != 5 || !hasKeys(docs[0], "year") || !hasKeys(docs[4], "year") {
		t.Errorf("select with limit = %v", docs)
	}
}

func TestSelect_MissingFieldIsOmitted(t *testing.T) {
	db := filmDB(t)
	docs := exec(t, New(db, testutil.MoviesCollection).Select("name director").Limit(1))
	if !hasKeys(docs[0], "name") {
		t.Errorf("got %v", docs[0])
	}
	docs = exec(t, New(db, testutil.MoviesCollection).Select("").Limit(1))
	if !hasKeys(docs[0], "id", "name", "year", "rank") {
		t.Errorf("empty select should clear the projection: %v", docs[0])
	}
}

func TestWhere_Literal(t *testing.T) {
	db := filmDB(t)

	docs := exec(t, New(db, testutil.MoviesCollection).Where(Criteria{"name": "Shrek"}))
	want := storage.Document{"id": 300229, "name": "Shrek", "year": 2001, "rank": 8.1}
	if len(docs) != 1 || !sameDoc(t, docs[0], want) {
		t.Errorf("Shrek = %v", docs)
	}

	docs = exec(t, New(db, testutil.MoviesCollection).Where(Criteria{"year": 1999}))
	if got := names(docs); !slices.Equal(got, []string{"Fight Club", "Stir of Echoes", "Matrix, The", "Sixth Sense, The"}) {
		t.Errorf("1999 = %v", got)
	}

	docs = exec(t, New(db, testutil.MoviesCollection).Where(Criteria{"year": 2003, "rank": 8.1}))
	if got := names(docs); !slices.Equal(got, []string{"Mystic River"}) {
		t.Errorf("2003/8.1 = %v", got)
	}

	// Null is a value; absent is not.
	docs = exec(t, New(db, testutil.MoviesCollection).Where(Criteria{"rank": nil}))
	if got := names(docs); !slices.Equal(got, []string{"Batman Begins"}) {
		t.Errorf("rank null = %v", got)
	}
	if n := count(t, New(db, testutil.MoviesCollection).Where(Criteria{"director": nil})); n != 0 {
		t.Errorf("absent field matched %d docs", n)
	}
}

func TestWhere_Predicates(t *testing.T) {
	db := filmDB(t)
	rankBelow := func(limit float64) func(any) bool {
		return func(v any) bool {
			r, ok := v.(float64)
			return ok && r < limit
		}
	}

	n := count(t, New(db, testutil.MoviesCollection).Where(Criteria{
		"year": func(v any) bool { return v.(float64) < 2000 },
	}))
	if n != 24 {
		t.Errorf("before 2000 = %d, want 24", n)
	}

	docs := exec(t, New(db, testutil.MoviesCollection).Where(Criteria{
		"name": func(v any) bool { return strings.HasPrefix(v.(string), "S") },
		"rank": rankBelow(7.5),
	}))
	if got := names(docs); !slices.Equal(got, []string{"Stir of Echoes"}) {
		t.Errorf("S and rank < 7.5 = %v", got)
	}

	n = count(t, New(db, testutil.MoviesCollection).Where(Criteria{
		"year": 2001,
		"rank": func(v any) bool { r, ok := v.(float64); return ok && r > 7 },
	}))
	if n != 2 {
		t.Errorf("hybrid = %d, want 2", n)
	}
}

func TestWhere_PanickingPredicateIsNonMatch(t *testing.T) {
	db := filmDB(t)
	// Batman Begins has a null rank; the type assertion panics for it.
	docs := exec(t, New(db, testutil.MoviesCollection).Where(Criteria{
		"rank": func(v any) bool { return v.(float64) < 7 },
	}))
	if got := names(docs); !slices.Equal(got, []string{"Footloose", "Flatliners", "Titanic"}) {
		t.Errorf("got %v", got)
	}
}

func TestWhere_WithSelectAndLimit(t *testing.T) {
	db := filmDB(t)

	docs := exec(t, New(db, testutil.MoviesCollection).Where(Criteria{"name": "Shrek"}).Select("year"))
	if len(docs) != 1 || !sameDoc(t, docs[0], storage.Document{"year": 2001}) {
		t.Errorf("where+select = %v", docs)
	}

	docs = exec(t, New(db, testutil.MoviesCollection).
		Where(Criteria{"year": Gt(2000)}).
		Limit(2))
	want := []storage.Document{
		{"id": 30959, "name": "Batman Begins", "year": 2005, "rank": nil},
		{"id": 124110, "name": "Garden State", "year": 2004, "rank": 8.3},
	}
	if len(docs) != 2 || !sameDoc(t, docs[0], want[0]) || !sameDoc(t, docs[1], want[1]) {
		t.Errorf("where+limit = %v", docs)
	}
}

func TestWhere_CallsCombine(t *testing.T) {
	db := filmDB(t)
	q := New(db, testutil.MoviesCollection).Where(Criteria{"year": 2003}).Where(Criteria{"rank": 8.1})
	if got := names(exec(t, q)); !slices.Equal(got, []string{"Mystic River"}) {
		t.Errorf("got %v", got)
	}
	// Repeating a field replaces the earlier criterion.
	q.Where(Criteria{"year": 2001})
	if got := names(exec(t, q)); !slices.Equal(got, []string{"Shrek"}) {
		t.Errorf("after replacing year got %v", got)
	}
}

func TestWhere_UnencodableLiteral(t *testing.T) {
	db := filmDB(t)
	q := New(db, testutil.MoviesCollection).Where(Criteria{"year": make(chan int)})
	if _, err := q.Exec(context.Background()); !errors.Is(err, dberrors.ErrInvalidField) {
		t.Errorf("got %v, want ErrInvalidField", err)
	}
}

func TestHelperPredicates(t *testing.T) {
	db := filmDB(t)
	cases := []struct {
		name string
		c    Criteria
		want int
	}{
		{"gt", Criteria{"year": Gt(2000)}, 9},
		{"lte", Criteria{"year": Lte(1990)}, 11},
		{"gte and lt", Criteria{"year": Gte(2000), "rank": Lt(8.0)}, 4},
		{"eq", Criteria{"name": Eq("Heat")}, 1},
		{"ne", Criteria{"year": Ne(1999)}, 32},
		{"in", Criteria{"name": In("Shrek", "Heat", "Nope")}, 2},
		{"prefix", Criteria{"name": HasPrefix("S")}, 5},
		{"exists", Criteria{"rank": Exists()}, 35},
		{"gt on strings never matches numbers", Criteria{"name": Gt(0)}, 0},
	}
	for _, tc := range cases {
		if got := count(t, New(db, testutil.MoviesCollection).Where(tc.c)); got != tc.want {
			t.Errorf("%s: count = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestExplain(t *testing.T) {
	db := filmDB(t)
	cases := []struct {
		q    *Query
		want Strategy
	}{
		{New(db, "m"), FullScan},
		{New(db, "m").Limit(3), LimitScan},
		{New(db, "m").Where(Criteria{"a": 1}), FilterScan},
		{New(db, "m").Where(Criteria{"a": 1}).Limit(3), FilterLimitScan},
		{New(db, "m").Limit(3).Order("a"), SortScan},
	}
	for _, tc := range cases {
		if got := tc.q.Explain(); got != tc.want {
			t.Errorf("%s: Explain = %s, want %s", tc.q, got, tc.want)
		}
	}
}

func TestClone_Independent(t *testing.T) {
	db := filmDB(t)
	q := New(db, testutil.MoviesCollection).Where(Criteria{"year": 1999})
	c := q.Clone().Limit(2).Select("name").Where(Criteria{"rank": 8.5})

	if n := count(t, q); n != 4 {
		t.Errorf("original count = %d, want 4", n)
	}
	docs := exec(t, c)
	if got := names(docs); !slices.Equal(got, []string{"Fight Club", "Matrix, The"}) {
		t.Errorf("clone = %v", got)
	}
	if p := q.Plan(); p.Projection != nil || p.Stages[0].HasLimit || len(p.Stages[0].Criteria) != 1 {
		t.Errorf("original plan changed: %+v", p)
	}
}

func TestString(t *testing.T) {
	db := filmDB(t)
	q := New(db, testutil.MoviesCollection).
		Where(Criteria{"year": 1999, "name": HasPrefix("F")}).
		Order("-rank").
		Limit(2).
		InnerJoin(New(db, testutil.RolesCollection), "id", "movie_id").
		Select("-id")
	want := "movies where(name=<fn>,year=1999) order(-rank) limit(2) join(roles id=movie_id) | select(-id)"
	if got := q.String(); got != want {
		t.Errorf("String = %q\nwant      %q", got, want)
	}
}
