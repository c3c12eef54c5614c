package main

import (
	"fmt"

	"github.com/hongjs/code-tanuki/internal/handler"
	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		params handler.HistoryParams
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded reviews, newest first",
		Example: `  tanuki history --status error --from 2026-05-01
  tanuki history --search widgets --limit 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := params.Filter()
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			page, err := a.History.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				return renderJSON(cmd.OutOrStdout(), page)
			}
			renderRuns(cmd.OutOrStdout(), page)
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Search, "search", "", "match PR title, repository or ticket")
	cmd.Flags().StringVar(&params.Status, "status", "", "success or error")
	cmd.Flags().StringVar(&params.Model, "model-id", "", "only runs with this model")
	cmd.Flags().StringVar(&params.DateFrom, "from", "", "earliest date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&params.DateTo, "to", "", "latest date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().IntVar(&params.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&params.Limit, "limit", 20, "runs per page (max 100)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the page as JSON")
	return cmd
}

func newShowCommand() *cobra.Command {
	var (
		file   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "show <review-id>",
		Short: "Show a recorded review or one of its artifacts",
		Example: `  tanuki show 0190f7b2-...
  tanuki show 0190f7b2-... --file prompt.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if file != "" {
				b, err := a.History.ReadArtifact(cmd.Context(), args[0], file)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}

			detail, err := a.History.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return renderJSON(cmd.OutOrStdout(), detail)
			}
			renderRun(cmd.OutOrStdout(), detail)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "print this artifact instead of the run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run as JSON")
	return cmd
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <review-id>",
		Short: "Delete a recorded review and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.History.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
