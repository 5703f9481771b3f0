package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

const historyFile = ".filedb_history"

func (a *app) shellCmd() *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell; type .help for commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := newShell(a)
			s.collection = collection
			return s.run(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "C", "", "collection to start in")
	return cmd
}

type shell struct {
	app        *app
	collection string
}

func newShell(a *app) *shell {
	return &shell{app: a}
}

func (s *shell) prompt() string {
	if s.collection == "" {
		return "filedb> "
	}
	return "filedb:" + s.collection + "> "
}

func (s *shell) run(ctx context.Context, out io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(completeCommand)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}

	fmt.Fprintf(out, "filedb shell on %s. Type .help for commands.\n", s.app.db.Root())
	for {
		if ctx.Err() != nil {
			break
		}
		input, err := line.Prompt(s.prompt())
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			break
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		res := s.execute(ctx, input)
		if res.IsExit() {
			break
		}
		res.Print(out)
	}

	if histPath != "" {
		if f, err := os.Create(histPath); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}
	return nil
}

func completeCommand(prefix string) []string {
	var out []string
	for _, c := range shellCommands {
		if strings.HasPrefix(c.name, prefix) {
			out = append(out, c.name)
		}
	}
	return out
}
