package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) queryCmd() *cobra.Command {
	var opts queryOptions
	var count bool

	cmd := &cobra.Command{
		Use:   "query <collection>",
		Short: "Run a query and print the matching documents as a JSON array",
		Example: `  filedb query movies -w year=1999 -o -rank -l 3 -s "name rank"
  filedb query movies -w "name^=Star" -j roles:id=movie_id -j actors:actor_id=id`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.build(a.db, args[0], a.queryOpts()...)
			if err != nil {
				return err
			}
			a.log.Debug("query built", "query", q.String())

			out := cmd.OutOrStdout()
			switch {
			case opts.explain:
				fmt.Fprintln(out, q.Explain())
				return nil
			case count:
				n, err := q.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, n)
				return nil
			}
			docs, err := q.Exec(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(out, docs)
		},
	}
	opts.bind(cmd.Flags())
	cmd.Flags().BoolVarP(&count, "count", "c", false, "print the number of matching documents")
	return cmd
}
