// Copyright (c) 2025 Velocli
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for velocli.
// It implements subcommands for querying a remote forensic-investigation
// server, fetching server-side files, driving endpoint clients and managing
// credential bundles, using the Cobra CLI framework. The package handles
// command parsing, execution, and provides terminal UI with spinners and a
// live streaming status line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
	flagConfig  string
	flagInst    string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "velocli",
	Short:         "Client for the Velociraptor gRPC API",
	Long:          `velocli authenticates to a Velociraptor server with an API credential bundle and issues VQL queries against it, streaming results back as they arrive.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("velocli %s\n", Version)
			return nil
		}
		// If no flag is set, show help
		return cmd.Help()
	},
}

// Execute runs the CLI application.
// It executes the root command and handles any errors that occur during execution.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to the API credential bundle (overrides stored bundles)")
	rootCmd.PersistentFlags().StringVar(&flagInst, "instance", "", "Named server instance to use")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
