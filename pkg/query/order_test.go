package query

import (
	"slices"
	"testing"

	"github.com/kartikbazzad/filedb/internal/testutil"
	"github.com/kartikbazzad/filedb/pkg/storage"
)

func TestOrder_ByField(t *testing.T) {
	db := filmDB(t)
	docs := exec(t, New(db, testutil.MoviesCollection).Order("year"))
	if len(docs) != 36 {
		t.Fatalf("got %d docs", len(docs))
	}
	want := storage.Document{"id": 130128, "name": "Godfather, The", "year": 1972, "rank": 9}
	if !sameDoc(t, docs[0], want) {
		t.Errorf("first = %v", docs[0])
	}
	for i := 1; i < len(docs); i++ {
		a, aok := docs[i-1]["year"]
		b, bok := docs[i]["year"]
		if compareValues(a, aok, b, bok) > 0 {
			t.Fatalf("not sorted at %d: %v after %v", i, b, a)
		}
	}
}

func TestOrder_StableForEqualValues(t *testing.T) {
	db := filmDB(t)
	docs := exec(t, New(db, testutil.MoviesCollection).Order("year"))
	var y1999 []string
	for _, d := range docs {
		if d["year"] == float64(1999) {
			y1999 = append(y1999, d["name"].(string))
		}
	}
	want := []string{"Fight Club", "Stir of Echoes", "Matrix, The", "Sixth Sense, The"}
	if !slices.Equal(y1999, want) {
		t.Errorf("equal years lost key order: %v", y1999)
	}
}

func TestOrder_Descending(t *testing.T) {
	db := filmDB(t)
	docs := exec(t, New(db, testutil.MoviesCollection).Order("-year"))
	if docs[0]["name"] != "Batman Begins" || docs[35]["name"] != "Godfather, The" {
		t.Errorf("first %v, last %v", docs[0]["name"], docs[35]["name"])
	}
}

func TestOrder_NullsFirst(t *testing.T) {
	db := filmDB(t)
	byRank := exec(t, New(db, testutil.MoviesCollection).Order("rank"))
	plain := exec(t, New(db, testutil.MoviesCollection))

	if byRank[0]["name"] != "Batman Begins" {
		t.Errorf("null rank should sort first, got %v", byRank[0])
	}
	if sameDoc(t, plain[0], byRank[0]) {
		t.Error("ordering one query changed another")
	}
}

func TestOrder_CustomComparator(t *testing.T) {
	db := filmDB(t)
	docs := exec(t, New(db, testutil.MoviesCollection).OrderBy(func(a, b storage.Document) int {
		return len(b["name"].(string)) - len(a["name"].(string))
	}))
	want := storage.Document{"id": 257264, "name": "Planes, Trains & Automobiles", "year": 1987, "rank": 7.2}
	if len(docs) != 36 || !sameDoc(t, docs[0], want) {
		t.Errorf("first = %v", docs[0])
	}
}

func TestOrder_WithWhere(t *testing.T) {
	db := filmDB(t)
	docs := exec(t, New(db, testutil.MoviesCollection).
		Where(Criteria{"name": HasPrefix("F")}).
		Order("rank"))
	want := storage.Document{"id": 112290, "name": "Fight Club", "year": 1999, "rank": 8.5}
	if len(docs) != 4 || !sameDoc(t, docs[3], want) {
		t.Errorf("got %v", names(docs))
	}
}

func TestOrder_LimitAppliesAfterSort(t *testing.T) {
	db := filmDB(t)
	for _, q := range []*Query{
		New(db, testutil.MoviesCollection).Order("rank").Limit(3),
		New(db, testutil.MoviesCollection).Limit(3).Order("rank"),
	} {
		if got := names(exec(t, q)); !slices.Equal(got, []string{"Batman Begins", "Footloose", "Flatliners"}) {
			t.Errorf("%s = %v", q, got)
		}
	}
}

func TestOrder_Clear(t *testing.T) {
	db := filmDB(t)
	q := New(db, testutil.MoviesCollection).Order("-year").Order("")
	if docs := exec(t, q); docs[0]["name"] != "Aliens" {
		t.Errorf("cleared order still sorted: %v", docs[0])
	}
	if q.Explain() != FullScan {
		t.Errorf("Explain = %s", q.Explain())
	}
}

func TestCompareValues_Ranks(t *testing.T) {
	ordered := []struct {
		v       any
		present bool
	}{
		{nil, false},
		{false, true},
		{true, true},
		{-1.5, true},
		{2, true},
		{"", true},
		{"abc", true},
		{[]any{1}, true},
		{map[string]any{"a": 1}, true},
	}
	for i := 1; i < len(ordered); i++ {
		a, b := ordered[i-1], ordered[i]
		if c := compareValues(a.v, a.present, b.v, b.present); c >= 0 {
			t.Errorf("compare(%v, %v) = %d, want < 0", a.v, b.v, c)
		}
	}
	if compareValues(nil, true, nil, false) != 0 {
		t.Error("null and absent compare equal")
	}
	if compareValues(2, true, 2.0, true) != 0 {
		t.Error("int and float of the same value compare equal")
	}
}
