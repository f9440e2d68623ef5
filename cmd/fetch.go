// Copyright (c) 2025 Velocli
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"velocli/internal/logging"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	fetchOutput      string
	fetchDialTimeout time.Duration
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [flags] SERVER_PATH",
	Short: "Download a file from the server's filestore",
	Long: `Fetches a server-side file (flow uploads, exports, server artifacts) in
chunks and writes it to --output-file, or to stdout when no output file is
given.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output-file", "o", "", "Destination path (default stdout)")
	fetchCmd.Flags().DurationVar(&fetchDialTimeout, "dial-timeout", 0, "Bound for connecting and the TLS handshake")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stopSig := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stopSig()

	logger := logging.NewLogger(os.Stderr, verbose)
	sess, _, err := openSession(ctx, logger, fetchDialTimeout, 0, "", 0)
	if err != nil {
		return err
	}
	defer sess.Close()

	out := os.Stdout
	if fetchOutput != "" {
		f, err := os.Create(fetchOutput)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	stopSpinner := func() {}
	if fetchOutput != "" && isTerminal(os.Stderr) {
		stopSpinner = startInlineSpinner(os.Stderr,
			fmt.Sprintf("fetching %s", args[0]),
			[]string{"|", "/", "-", "\\"}, 120*time.Millisecond)
	}
	n, err := sess.FetchTo(ctx, args[0], out)
	stopSpinner()
	if err != nil {
		return fmt.Errorf("%s", logging.PresentError("fetch", err))
	}

	if fetchOutput != "" {
		pterm.Success.Printfln("wrote %d bytes to %s", n, fetchOutput)
	} else {
		logger.Debug().Int64("bytes", n).Msg("fetch complete")
	}
	return nil
}
