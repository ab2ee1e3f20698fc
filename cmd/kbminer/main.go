// Package main provides the kbminer CLI for local ingestion, chat and feedback.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bull/kbminer/internal/app"
)

var rootCmd = &cobra.Command{
	Use:   "kbminer",
	Short: "PDF knowledge base tool",
	Long:  "CLI for ingesting PDFs into a job's knowledge base and querying it",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		application = app.New()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			_ = application.Close()
		}
	},
	SilenceUsage: true,
}

// application is built once per invocation, after flags are parsed.
var application *app.App

func init() {
	rootCmd.AddCommand(ingestCmd, askCmd, feedbackCmd, balanceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
