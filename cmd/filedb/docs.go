package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) collectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := a.db.ListCollections()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func (a *app) keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys <collection>",
		Short: "List the keys of a collection in ascending order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := a.db.ListKeys(args[0])
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <key>",
		Short: "Print one document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.db.Find(cmd.Context(), args[0], parseKey(args[1]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}
}

func (a *app) insertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insert <collection> <json|->",
		Short: "Insert a document under a new integer key and print the key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd, args[1])
			if err != nil {
				return err
			}
			e, err := a.db.Insert(cmd.Context(), args[0], doc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.Key)
			return nil
		},
	}
}

func (a *app) putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <collection> <key> <json|->",
		Short: "Insert a document under a chosen key; fails if the key exists",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd, args[2])
			if err != nil {
				return err
			}
			e, err := a.db.InsertWithKey(cmd.Context(), args[0], parseKey(args[1]), doc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.Key)
			return nil
		},
	}
}

func (a *app) updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <collection> <key> <json|->",
		Short: "Overwrite the document at key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd, args[2])
			if err != nil {
				return err
			}
			_, err = a.db.Update(cmd.Context(), args[0], parseKey(args[1]), doc)
			return err
		},
	}
}

func (a *app) removeCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "remove <collection> [key]",
		Short: "Remove a document, or every document with --all, and print what was removed",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case all && len(args) == 1:
				docs, err := a.db.RemoveAll(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), docs)
			case !all && len(args) == 2:
				doc, err := a.db.Remove(cmd.Context(), args[0], parseKey(args[1]))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), doc)
			default:
				return fmt.Errorf("give either a key or --all")
			}
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "remove every document of the collection")
	return cmd
}

func (a *app) dropCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Delete every collection under the root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to drop %s without --yes", a.db.Root())
			}
			return a.db.Drop(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all data")
	return cmd
}
