package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hongjs/code-tanuki/internal/review"
	"github.com/hongjs/code-tanuki/internal/service"
	"github.com/spf13/cobra"
)

func newReviewCommand() *cobra.Command {
	var (
		req     service.ReviewRequest
		outFile string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "review <pr-url>",
		Short: "Review a pull request",
		Long: `Fetch the pull request, ask the model for comments and publish them as a
GitHub review. With --preview nothing is posted; the comments can be saved
with --out, edited, and published later with "tanuki submit".`,
		Example: `  # Review and publish
  tanuki review https://github.com/acme/widgets/pull/42

  # Preview with Gemini and keep the comments for editing
  tanuki review https://github.com/acme/widgets/pull/42 \
    --model gemini-2.5-pro --preview --out comments.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			req.PRURL = args[0]
			if req.ModelID == "" {
				req.ModelID = a.Config.Model.Default
			}
			res, err := a.Reviews.Review(cmd.Context(), req)
			if err != nil {
				return err
			}
			if outFile != "" {
				if err := writeComments(outFile, res.Comments); err != nil {
					return err
				}
			}
			if asJSON {
				return renderJSON(cmd.OutOrStdout(), res)
			}
			renderResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.ModelID, "model-id", "m", "", "model to review with (default from config)")
	cmd.Flags().StringVar(&req.TicketID, "ticket", "", "Jira ticket id (default: detected from the PR title)")
	cmd.Flags().StringVar(&req.Instructions, "instructions", "", "additional instructions for the model")
	cmd.Flags().IntVar(&req.MaxTokens, "max-tokens", 0, "response token limit (default from the model catalog)")
	cmd.Flags().BoolVar(&req.PreviewOnly, "preview", false, "do not publish, only show the comments")
	cmd.Flags().BoolVar(&req.Force, "force", false, "review even if the PR was reviewed recently")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write the comments to this JSON file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newSubmitCommand() *cobra.Command {
	var (
		req          service.SubmitRequest
		commentsFile string
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "submit <pr-url>",
		Short: "Publish previewed comments",
		Example: `  tanuki submit https://github.com/acme/widgets/pull/42 \
    --review-id 0190f7b2-... --comments comments.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comments, err := readComments(commentsFile)
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			req.PRURL = args[0]
			req.Comments = comments
			if req.ModelID == "" {
				req.ModelID = a.Config.Model.Default
			}
			res, err := a.Reviews.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				return renderJSON(cmd.OutOrStdout(), res)
			}
			renderResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ReviewID, "review-id", "", "id of the preview run to complete")
	cmd.Flags().StringVarP(&req.ModelID, "model-id", "m", "", "model recorded on the run (default from config)")
	cmd.Flags().StringVar(&req.TicketID, "ticket", "", "Jira ticket to notify")
	cmd.Flags().StringVarP(&commentsFile, "comments", "c", "", "JSON file with the comments to publish")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("comments")
	return cmd
}

func writeComments(path string, comments []review.Comment) error {
	if comments == nil {
		comments = []review.Comment{}
	}
	b, err := json.MarshalIndent(comments, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing comments: %w", err)
	}
	return nil
}

func readComments(path string) ([]review.Comment, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading comments: %w", err)
	}
	var comments []review.Comment
	if err := json.Unmarshal(b, &comments); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return comments, nil
}
