package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kartikbazzad/filedb/pkg/storage"
)

type result interface {
	Print(w io.Writer)
	IsExit() bool
}

type errorResult struct {
	err error
}

func (e errorResult) Print(w io.Writer) { fmt.Fprintln(w, "ERROR:", e.err) }
func (e errorResult) IsExit() bool      { return false }

type exitResult struct{}

func (exitResult) Print(io.Writer) {}
func (exitResult) IsExit() bool    { return true }

type textResult struct {
	lines []string
}

func (t textResult) Print(w io.Writer) {
	for _, l := range t.lines {
		fmt.Fprintln(w, l)
	}
}
func (t textResult) IsExit() bool { return false }

type jsonResult struct {
	v any
}

func (j jsonResult) Print(w io.Writer) {
	if err := printJSON(w, j.v); err != nil {
		errorResult{err}.Print(w)
	}
}
func (j jsonResult) IsExit() bool { return false }

type helpResult struct{}

func (helpResult) Print(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	for _, c := range shellCommands {
		fmt.Fprintf(w, "  %-34s %s\n", c.name+" "+c.args, c.help)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Query flags:")
	fmt.Fprintln(w, `  -w field<op>value   condition, op is one of = != > >= < <= ^= (repeatable)`)
	fmt.Fprintln(w, `  -o [-]field         order, a leading - sorts descending`)
	fmt.Fprintln(w, `  -l n                limit`)
	fmt.Fprintln(w, `  -s "[-]a b"         select, a leading - drops the fields`)
	fmt.Fprintln(w, `  -j coll:local=foreign  inner join (repeatable)`)
	fmt.Fprintln(w, `  --explain           print the read strategy`)
}
func (helpResult) IsExit() bool { return false }

var shellCommands = []struct {
	name string
	args string
	help string
}{
	{".help", "", "Show this help"},
	{".exit", "", "Leave the shell"},
	{".use", "<collection>", "Set the current collection"},
	{".collections", "", "List collections"},
	{".keys", "", "List keys of the current collection"},
	{".get", "<key>", "Print a document"},
	{".insert", "<json>", "Insert under the next integer key"},
	{".put", "<key> <json>", "Insert under a chosen key"},
	{".update", "<key> <json>", "Overwrite a document"},
	{".remove", "<key>", "Remove a document"},
	{".query", "[flags]", "Run a query over the current collection"},
	{".count", "[flags]", "Count the documents a query yields"},
	{".index", "add|ls|rm|get [field] [value]", "Manage indexes of the current collection"},
	{".metrics", "", "Print engine metrics"},
}

// command is one parsed shell line. Rest is the raw text after the name.
type command struct {
	Name string
	Args []string
	Rest string
}

func parseCommand(line string) (*command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("empty command")
	}
	if !strings.HasPrefix(line, ".") {
		return nil, fmt.Errorf("commands must start with '.'")
	}
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args, err := splitArgs(rest)
	if err != nil {
		// Payload commands read Rest instead.
		args = strings.Fields(rest)
	}
	return &command{Name: name, Args: args, Rest: rest}, nil
}

func (c *command) need(n int) error {
	if len(c.Args) < n {
		return fmt.Errorf("%s: expected %d argument(s), got %d", c.Name, n, len(c.Args))
	}
	return nil
}

// keyAndDocument splits "<key> <json>" keeping the JSON text as typed.
func (c *command) keyAndDocument() (storage.Key, storage.Document, error) {
	key, payload, ok := strings.Cut(c.Rest, " ")
	if !ok || strings.TrimSpace(payload) == "" {
		return "", nil, fmt.Errorf("%s: expected <key> <json>", c.Name)
	}
	doc, err := decodeDocument(payload)
	return parseKey(key), doc, err
}

func (s *shell) execute(ctx context.Context, line string) result {
	cmd, err := parseCommand(line)
	if err != nil {
		return errorResult{err}
	}
	res, err := s.dispatch(ctx, cmd)
	if err != nil {
		return errorResult{err}
	}
	return res
}

func (s *shell) dispatch(ctx context.Context, cmd *command) (result, error) {
	db := s.app.db

	switch cmd.Name {
	case ".help":
		return helpResult{}, nil
	case ".exit", ".quit":
		return exitResult{}, nil
	case ".use":
		if err := cmd.need(1); err != nil {
			return nil, err
		}
		if err := storage.ValidateCollectionName(cmd.Args[0]); err != nil {
			return nil, err
		}
		s.collection = cmd.Args[0]
		return textResult{[]string{"using " + s.collection}}, nil
	case ".collections":
		names, err := db.ListCollections()
		if err != nil {
			return nil, err
		}
		return textResult{names}, nil
	case ".metrics":
		var buf bytes.Buffer
		if err := writeMetrics(&buf); err != nil {
			return nil, err
		}
		return textResult{[]string{strings.TrimRight(buf.String(), "\n")}}, nil
	}

	if s.collection == "" {
		return nil, fmt.Errorf("no collection selected; use .use <collection>")
	}
	coll := db.Collection(s.collection)

	switch cmd.Name {
	case ".keys":
		keys, err := coll.ListKeys()
		if err != nil {
			return nil, err
		}
		lines := make([]string, len(keys))
		for i, k := range keys {
			lines[i] = k.String()
		}
		return textResult{lines}, nil
	case ".get":
		if err := cmd.need(1); err != nil {
			return nil, err
		}
		doc, err := coll.Find(ctx, parseKey(cmd.Args[0]))
		if err != nil {
			return nil, err
		}
		return jsonResult{doc}, nil
	case ".insert":
		doc, err := decodeDocument(cmd.Rest)
		if err != nil {
			return nil, err
		}
		e, err := coll.Insert(ctx, doc)
		if err != nil {
			return nil, err
		}
		return textResult{[]string{e.Key.String()}}, nil
	case ".put":
		key, doc, err := cmd.keyAndDocument()
		if err != nil {
			return nil, err
		}
		e, err := coll.InsertWithKey(ctx, key, doc)
		if err != nil {
			return nil, err
		}
		return textResult{[]string{e.Key.String()}}, nil
	case ".update":
		key, doc, err := cmd.keyAndDocument()
		if err != nil {
			return nil, err
		}
		if _, err := coll.Update(ctx, key, doc); err != nil {
			return nil, err
		}
		return textResult{[]string{"OK"}}, nil
	case ".remove":
		if err := cmd.need(1); err != nil {
			return nil, err
		}
		doc, err := coll.Remove(ctx, parseKey(cmd.Args[0]))
		if err != nil {
			return nil, err
		}
		return jsonResult{doc}, nil
	case ".query", ".count":
		return s.runQuery(ctx, cmd)
	case ".index":
		return s.runIndex(ctx, cmd)
	}
	return nil, fmt.Errorf("unknown command %s; try .help", cmd.Name)
}

func (s *shell) runQuery(ctx context.Context, cmd *command) (result, error) {
	var opts queryOptions
	fs := pflag.NewFlagSet(cmd.Name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts.bind(fs)
	if err := fs.Parse(cmd.Args); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%s: unexpected argument %q", cmd.Name, fs.Arg(0))
	}

	q, err := opts.build(s.app.db, s.collection, s.app.queryOpts()...)
	if err != nil {
		return nil, err
	}
	if opts.explain {
		return textResult{[]string{q.Explain().String()}}, nil
	}
	if cmd.Name == ".count" {
		n, err := q.Count(ctx)
		if err != nil {
			return nil, err
		}
		return textResult{[]string{strconv.Itoa(n)}}, nil
	}
	docs, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult{docs}, nil
}

func (s *shell) runIndex(ctx context.Context, cmd *command) (result, error) {
	if err := cmd.need(1); err != nil {
		return nil, err
	}
	store := s.app.store
	switch sub := cmd.Args[0]; sub {
	case "ls":
		fields, err := store.Indexes(s.collection)
		if err != nil {
			return nil, err
		}
		return textResult{fields}, nil
	case "add":
		if err := cmd.need(2); err != nil {
			return nil, err
		}
		if err := buildIndexes(ctx, store, s.collection, cmd.Args[1:]); err != nil {
			return nil, err
		}
		return textResult{[]string{"OK"}}, nil
	case "rm":
		if err := cmd.need(2); err != nil {
			return nil, err
		}
		if err := dropIndex(store, s.collection, cmd.Args[1]); err != nil {
			return nil, err
		}
		return textResult{[]string{"OK"}}, nil
	case "get":
		if err := cmd.need(3); err != nil {
			return nil, err
		}
		keys, ok, err := store.GetIndexes(ctx, s.collection, cmd.Args[1], parseValue(cmd.Args[2]))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("no index on %s.%s", s.collection, cmd.Args[1])
		}
		lines := make([]string, len(keys))
		for i, k := range keys {
			lines[i] = k.String()
		}
		return textResult{lines}, nil
	default:
		return nil, fmt.Errorf(".index: unknown subcommand %q", sub)
	}
}
