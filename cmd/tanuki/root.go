package main

import (
	"github.com/hongjs/code-tanuki/internal/app"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	dotEnvFile string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tanuki",
		Short: "AI code review for GitHub pull requests",
		Long: `tanuki fetches a pull request, optionally the linked Jira ticket, asks a
language model for line comments and publishes them as a GitHub review.

Every run is recorded in the same history the server uses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./tanuki.yaml)")
	flags.StringVar(&dotEnvFile, "env-file", ".env", "dotenv file read before the environment")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json, console)")
	flags.String("model", "", "default model id")
	flags.String("ignore-file", "", "path of the ignore pattern file")
	flags.Duration("duplicate-window", 0, "reject repeat reviews of a PR inside this window")
	flags.Bool("drop-out-of-diff", true, "drop comments on lines outside the diff")

	rootCmd.AddCommand(
		newReviewCommand(),
		newSubmitCommand(),
		newHistoryCommand(),
		newShowCommand(),
		newDeleteCommand(),
		newMigrateCommand(),
		newModelsCommand(),
		newKeygenCommand(),
	)
	return rootCmd
}

// openApp builds the application from the root flags. The caller closes it.
func openApp(cmd *cobra.Command) (*app.App, error) {
	return app.New(cmd.Context(), app.Options{
		DotEnvPath: dotEnvFile,
		ConfigFile: cfgFile,
		Flags:      cmd.Root().PersistentFlags(),
	})
}
