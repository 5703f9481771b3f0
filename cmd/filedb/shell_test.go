package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/kartikbazzad/filedb/internal/logger"
	"github.com/kartikbazzad/filedb/internal/testutil"
	"github.com/kartikbazzad/filedb/pkg/index"
)

func newTestShell(t *testing.T) *shell {
	t.Helper()
	db := testutil.OpenDB(t, nil)
	testutil.SeedFilms(t, db)
	return newShell(&app{
		cfg:   db.Config(),
		log:   logger.Discard(),
		db:    db,
		store: index.NewStore(db),
	})
}

// run executes line and returns what it printed.
func run(t *testing.T, s *shell, line string) string {
	t.Helper()
	var buf bytes.Buffer
	s.execute(context.Background(), line).Print(&buf)
	return buf.String()
}

func TestParseCommand(t *testing.T) {
	cmd, err := parseCommand(`  .put 0100 {"name": "Heat", "year": 1995}  `)
	if err != nil {
		t.Fatalf("parseCommand: %v", err)
	}
	if cmd.Name != ".put" {
		t.Errorf("Name = %q", cmd.Name)
	}
	if cmd.Rest != `0100 {"name": "Heat", "year": 1995}` {
		t.Errorf("Rest = %q", cmd.Rest)
	}
	if len(cmd.Args) == 0 || cmd.Args[0] != "0100" {
		t.Errorf("Args = %q", cmd.Args)
	}

	for _, line := range []string{"", "   ", "keys"} {
		if _, err := parseCommand(line); err == nil {
			t.Errorf("parseCommand(%q) should error", line)
		}
	}
}

func TestShell_RequiresCollection(t *testing.T) {
	s := newTestShell(t)

	if out := run(t, s, ".keys"); !strings.HasPrefix(out, "ERROR:") {
		t.Errorf(".keys without a collection = %q, want an error", out)
	}
	if out := run(t, s, ".use bad/name"); !strings.HasPrefix(out, "ERROR:") {
		t.Errorf(".use with an invalid name = %q, want an error", out)
	}
	if out := run(t, s, ".use movies"); out != "using movies\n" {
		t.Errorf(".use = %q", out)
	}
	if got := s.prompt(); got != "filedb:movies> " {
		t.Errorf("prompt = %q", got)
	}
}

func TestShell_Collections(t *testing.T) {
	s := newTestShell(t)
	out := run(t, s, ".collections")
	if out != "actors\nmovies\nroles\n" {
		t.Errorf(".collections = %q", out)
	}
}

func TestShell_DocumentCommands(t *testing.T) {
	s := newTestShell(t)
	run(t, s, ".use movies")

	if out := run(t, s, ".get 0007"); !strings.Contains(out, `"Shrek"`) {
		t.Errorf(".get 0007 = %q, want Shrek", out)
	}
	if out := run(t, s, ".get 7"); !strings.Contains(out, `"Shrek"`) {
		t.Errorf(".get 7 = %q, want Shrek", out)
	}
	if out := run(t, s, `.insert {"name": "Heat", "year": 1995}`); out != "0037\n" {
		t.Errorf(".insert = %q, want 0037", out)
	}
	if out := run(t, s, `.put heat {"name": "Heat"}`); out != "heat\n" {
		t.Errorf(".put = %q", out)
	}
	if out := run(t, s, `.put heat {"name": "Heat"}`); !strings.HasPrefix(out, "ERROR:") {
		t.Errorf(".put on an existing key = %q, want an error", out)
	}
	if out := run(t, s, `.update heat {"name": "Heat", "year": 1995}`); out != "OK\n" {
		t.Errorf(".update = %q", out)
	}
	if out := run(t, s, ".get heat"); !strings.Contains(out, "1995") {
		t.Errorf(".get after .update = %q", out)
	}
	if out := run(t, s, ".remove heat"); !strings.Contains(out, `"Heat"`) {
		t.Errorf(".remove = %q, want the removed document", out)
	}
	if out := run(t, s, ".get heat"); !strings.HasPrefix(out, "ERROR:") {
		t.Errorf(".get after .remove = %q, want an error", out)
	}
	if out := run(t, s, ".insert not json"); !strings.HasPrefix(out, "ERROR:") {
		t.Errorf(".insert with bad JSON = %q, want an error", out)
	}
	if out := run(t, s, ".update heat"); !strings.HasPrefix(out, "ERROR:") {
		t.Errorf(".update without a document = %q, want an error", out)
	}
}

func TestShell_Query(t *testing.T) {
	s := newTestShell(t)
	run(t, s, ".use movies")

	if out := run(t, s, ".count -w year=1999"); out != "4\n" {
		t.Errorf(".count year=1999 = %q, want 4", out)
	}

	out := run(t, s, `.query -w year=1999 -o name -l 2 -s "name"`)
	for _, want := range []string{"Fight Club", "Matrix The"} {
		if !strings.Contains(out, want) {
			t.Errorf(".query output missing %q:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"Stir of Echoes", `"year"`} {
		if strings.Contains(out, unwanted) {
			t.Errorf(".query output contains %q:\n%s", unwanted, out)
		}
	}

	if out := run(t, s, ".query --explain -w year=1999 -l 1"); out != "filter_limit_scan\n" {
		t.Errorf(".query --explain = %q", out)
	}
	if out := run(t, s, ".count -j roles:id=movie_id"); out != "18\n" {
		t.Errorf(".count with join = %q, want 18", out)
	}
	if out := run(t, s, ".query --bogus"); !strings.HasPrefix(out, "ERROR:") {
		t.Errorf(".query with an unknown flag = %q, want an error", out)
	}
	if out := run(t, s, ".query stray"); !strings.HasPrefix(out, "ERROR:") {
		t.Errorf(".query with a positional argument = %q, want an error", out)
	}
	if out := run(t, s, ".query -l -1"); !strings.HasPrefix(out, "ERROR:") {
		t.Errorf(".query with a negative limit = %q, want an error", out)
	}
}

func TestShell_Index(t *testing.T) {
	s := newTestShell(t)
	run(t, s, ".use movies")

	if out := run(t, s, ".index get year 1999"); !strings.HasPrefix(out, "ERROR:") {
		t.Errorf(".index get before add = %q, want an error", out)
	}
	if out := run(t, s, ".index add year name"); out != "OK\n" {
		t.Fatalf(".index add = %q", out)
	}
	if out := run(t, s, ".index ls"); out != "name\nyear\n" {
		t.Errorf(".index ls = %q", out)
	}

	out := run(t, s, ".index get year 1999")
	for _, k := range []string{"0006", "0009", "0016", "0022"} {
		if !strings.Contains(out, k) {
			t.Errorf(".index get year 1999 missing %s: %q", k, out)
		}
	}
	if out := run(t, s, ".count -w year=1999"); out != "4\n" {
		t.Errorf(".count through the index = %q, want 4", out)
	}

	if out := run(t, s, ".index rm year"); out != "OK\n" {
		t.Errorf(".index rm = %q", out)
	}
	if out := run(t, s, ".index ls"); out != "name\n" {
		t.Errorf(".index ls after rm = %q", out)
	}
	if out := run(t, s, ".index rm year"); !strings.HasPrefix(out, "ERROR:") {
		t.Errorf(".index rm on a dropped index = %q, want an error", out)
	}
	if out := run(t, s, ".index rebuild"); !strings.HasPrefix(out, "ERROR:") {
		t.Errorf(".index with an unknown subcommand = %q, want an error", out)
	}
}

func TestShell_MetaCommands(t *testing.T) {
	s := newTestShell(t)

	if !s.execute(context.Background(), ".exit").IsExit() {
		t.Error(".exit should exit")
	}
	if !s.execute(context.Background(), ".quit").IsExit() {
		t.Error(".quit should exit")
	}
	if out := run(t, s, ".help"); !strings.Contains(out, ".query") {
		t.Errorf(".help = %q", out)
	}
	if out := run(t, s, ".frobnicate"); !strings.HasPrefix(out, "ERROR:") {
		t.Errorf("unknown command = %q, want an error", out)
	}

	run(t, s, ".use movies")
	run(t, s, ".count")
	if out := run(t, s, ".metrics"); !strings.Contains(out, "filedb_") {
		t.Errorf(".metrics = %q, want filedb_ metrics", out)
	}
}

func TestCompleteCommand(t *testing.T) {
	got := completeCommand(".co")
	if len(got) != 2 || got[0] != ".collections" || got[1] != ".count" {
		t.Errorf("completeCommand(.co) = %q", got)
	}
	if got := completeCommand("x"); len(got) != 0 {
		t.Errorf("completeCommand(x) = %q", got)
	}
}
