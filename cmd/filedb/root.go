package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kartikbazzad/filedb/internal/codec"
	"github.com/kartikbazzad/filedb/internal/config"
	"github.com/kartikbazzad/filedb/internal/logger"
	"github.com/kartikbazzad/filedb/pkg/index"
	"github.com/kartikbazzad/filedb/pkg/query"
	"github.com/kartikbazzad/filedb/pkg/storage"
)

// app carries the state shared by every subcommand.
type app struct {
	root        string
	configPath  string
	logLevel    string
	showMetrics bool

	cfg   *config.Config
	log   *logger.Logger
	db    *storage.Database
	store *index.Store
}

// execute runs the CLI with args and closes the database however the
// command ends.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{}
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if cerr := a.close(stderr); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "filedb",
		Short:         "File-per-document JSON database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return a.open(cmd)
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.root, "root", "", "database root directory (overrides data_dir)")
	flags.StringVar(&a.configPath, "config", "", "config file (yaml, json or toml)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: DEBUG, INFO, WARN, ERROR")
	flags.BoolVar(&a.showMetrics, "metrics", false, "print engine metrics to stderr on exit")

	rootCmd.AddCommand(
		a.collectionsCmd(),
		a.keysCmd(),
		a.getCmd(),
		a.insertCmd(),
		a.putCmd(),
		a.updateCmd(),
		a.removeCmd(),
		a.dropCmd(),
		a.queryCmd(),
		a.indexCmd(),
		a.shellCmd(),
	)
	return rootCmd
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load(config.DefaultEnvPrefix, a.configPath)
	if err != nil {
		return err
	}
	if a.root != "" {
		cfg.DataDir = a.root
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.log = logger.New(cmd.ErrOrStderr(), logger.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
	})

	db, err := storage.Open(cfg.DataDir, storage.WithConfig(cfg), storage.WithLogger(a.log))
	if err != nil {
		return err
	}
	a.db = db
	a.store = index.NewStore(db)
	return nil
}

func (a *app) close(stderr io.Writer) error {
	if a.db == nil {
		return nil
	}
	if a.showMetrics {
		if err := writeMetrics(stderr); err != nil {
			return err
		}
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// queryOpts shares the app's index store and logger with every query it
// builds.
func (a *app) queryOpts() []query.Option {
	opts := []query.Option{query.WithLogger(a.log)}
	if a.cfg.Query.UseIndexes {
		return append(opts, query.WithIndexes(a.store))
	}
	return append(opts, query.WithoutIndexes())
}

// readDocument parses a document argument. "-" reads it from stdin.
func readDocument(cmd *cobra.Command, arg string) (storage.Document, error) {
	data := []byte(arg)
	if arg == "-" {
		var err error
		if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
			return nil, err
		}
	}
	return decodeDocument(string(data))
}

func decodeDocument(s string) (storage.Document, error) {
	doc, err := codec.Decode([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}
	return doc, nil
}

func printJSON(w io.Writer, v any) error {
	b, err := codec.Encode(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
