package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kartikbazzad/filedb/pkg/index"
)

func (a *app) indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage equality indexes",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <collection> <field>...",
			Short: "Build or rebuild indexes, one per field",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return buildIndexes(cmd.Context(), a.store, args[0], args[1:])
			},
		},
		&cobra.Command{
			Use:   "get <collection> <field> <value>",
			Short: "Print the keys whose field equals value",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				keys, ok, err := a.store.GetIndexes(cmd.Context(), args[0], args[1], parseValue(args[2]))
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no index on %s.%s", args[0], args[1])
				}
				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "ls <collection>",
			Short: "List indexed fields",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				fields, err := a.store.Indexes(args[0])
				if err != nil {
					return err
				}
				for _, f := range fields {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <collection> <field>",
			Short: "Drop an index",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return dropIndex(a.store, args[0], args[1])
			},
		},
	)
	return cmd
}

// dropIndex removes the index on field and reports a missing one as an error.
func dropIndex(store *index.Store, collection, field string) error {
	ok, err := store.HasIndex(collection, field)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no index on %s.%s", collection, field)
	}
	return store.DropIndex(collection, field)
}

// buildIndexes builds one index per field concurrently and returns the first
// failure.
func buildIndexes(ctx context.Context, store *index.Store, collection string, fields []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, field := range fields {
		g.Go(func() error {
			return store.AddIndex(ctx, collection, field)
		})
	}
	return g.Wait()
}
