// Package cmd wires the datatalk command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "datatalk",
	Short: "Ask questions about your tabular data in natural language",
	Long: `Datatalk answers natural-language questions over tabular data.

It retrieves schema, documentation, worked examples, and past tool usage
from a pgvector-backed store, assembles the most relevant context within
a token budget, and generates an answer with the configured model.
Conversations are persisted per session so follow-up questions keep
their context.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
