// Copyright (c) 2025 Velocli
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"velocli/api"
	"velocli/api/stream"
	"velocli/internal/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	clientID          string
	clientOrg         string
	clientDialTimeout time.Duration
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Run artifacts on a remote endpoint client",
	Long: `Schedules a collection on an endpoint client, waits for it to finish and
prints the collected results. The endpoint is addressed by its client ID
(C.xxxxxxxxxxxxxxxx).`,
}

var clientQueryCmd = &cobra.Command{
	Use:   "query [flags] VQL",
	Short: "Run a VQL query on the endpoint itself",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClientArtifact(cmd, "Generic.Client.VQL",
			map[string]string{"Query": args[0]}, printFlowRecords)
	},
}

var clientBashCmd = &cobra.Command{
	Use:   "bash [flags] COMMAND",
	Short: "Run a bash command on a Linux endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClientArtifact(cmd, "Linux.Sys.BashShell",
			map[string]string{"Command": args[0]}, printShellResults)
	},
}

var clientCmdShellCmd = &cobra.Command{
	Use:   "cmd [flags] COMMAND",
	Short: "Run a cmd.exe command on a Windows endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClientArtifact(cmd, "Windows.System.CmdShell",
			map[string]string{"Command": args[0]}, printShellResults)
	},
}

var clientPowershellCmd = &cobra.Command{
	Use:   "powershell [flags] COMMAND",
	Short: "Run a PowerShell command on a Windows endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClientArtifact(cmd, "Windows.System.PowerShell",
			map[string]string{"Command": args[0]}, printShellResults)
	},
}

func init() {
	clientCmd.PersistentFlags().StringVarP(&clientID, "client", "c", "", "Endpoint client ID (required)")
	clientCmd.PersistentFlags().StringVar(&clientOrg, "org", "", "Organization ID the client belongs to")
	clientCmd.PersistentFlags().DurationVar(&clientDialTimeout, "dial-timeout", 0, "Bound for connecting and the TLS handshake")
	_ = clientCmd.MarkPersistentFlagRequired("client")
	clientCmd.AddCommand(clientQueryCmd, clientBashCmd, clientCmdShellCmd, clientPowershellCmd)
	rootCmd.AddCommand(clientCmd)
}

// shellResult is the record shape the shell artifacts collect.
type shellResult struct {
	Stdout     string `json:"Stdout"`
	Stderr     string `json:"Stderr"`
	ReturnCode int64  `json:"ReturnCode"`
	Complete   bool   `json:"Complete"`
}

// runClientArtifact schedules artifact on the selected client, waits for the
// flow to leave the RUNNING state, then fetches the flow log and results
// concurrently. Error-level entries in the flow log fail the command even
// when the flow itself finished.
func runClientArtifact(cmd *cobra.Command, artifact string, spec map[string]string,
	print func([]stream.Record) error) error {

	ctx, stopSig := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stopSig()

	logger := logging.NewLogger(os.Stderr, verbose)
	sess, _, err := openSession(ctx, logger, clientDialTimeout, 0, clientOrg, 0)
	if err != nil {
		return err
	}
	defer sess.Close()

	flow, err := sess.ScheduleFlow(ctx, clientID, artifact, spec)
	if err != nil {
		return fmt.Errorf("%s", logging.PresentError("schedule collection", err))
	}
	logger.Info().Str("flow", flow.FlowID).Str("artifact", artifact).Msg("collection scheduled")

	stopSpinner := func() {}
	if isTerminal(os.Stderr) {
		stopSpinner = startInlineSpinner(os.Stderr,
			fmt.Sprintf("waiting for %s on %s", flow.FlowID, clientID),
			[]string{"|", "/", "-", "\\"}, 120*time.Millisecond)
	}
	err = flow.Wait(ctx)
	stopSpinner()
	if err != nil {
		return fmt.Errorf("%s", logging.PresentError("wait for collection", err))
	}

	var (
		entries []api.FlowLogEntry
		records []stream.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = flow.Log(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = flow.Results(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%s", logging.PresentError("read collection", err))
	}

	failed := replayFlowLog(logger, entries)
	if err := print(records); err != nil {
		return err
	}
	if failed {
		return fmt.Errorf("collection %s reported errors on the endpoint", flow.FlowID)
	}
	return nil
}

// replayFlowLog feeds the flow's server-side log through the CLI logger and
// reports whether any entry was error level.
func replayFlowLog(logger zerolog.Logger, entries []api.FlowLogEntry) bool {
	failed := false
	for _, e := range entries {
		level, err := zerolog.ParseLevel(strings.ToLower(e.Level))
		if err != nil {
			level = zerolog.InfoLevel
		}
		if level >= zerolog.ErrorLevel && level < zerolog.NoLevel {
			failed = true
		}
		logger.WithLevel(level).Str("source", "flow").Msg(e.Message)
	}
	return failed
}

// printFlowRecords streams collected records as JSON lines.
func printFlowRecords(records []stream.Record) error {
	enc := json.NewEncoder(os.Stdout)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

// printShellResults aggregates shell artifact records into one stdout and
// stderr pair. Shell artifacts may split long output across records.
func printShellResults(records []stream.Record) error {
	var out, errOut strings.Builder
	var rc int64
	for _, rec := range records {
		var r shellResult
		if err := decodeShell(rec, &r); err != nil {
			return err
		}
		out.WriteString(r.Stdout)
		errOut.WriteString(r.Stderr)
		if r.Complete {
			rc = r.ReturnCode
		}
	}
	if out.Len() > 0 {
		fmt.Fprint(os.Stdout, out.String())
	}
	if errOut.Len() > 0 {
		fmt.Fprint(os.Stderr, errOut.String())
	}
	if rc != 0 {
		return fmt.Errorf("remote command exited with code %d", rc)
	}
	return nil
}

func decodeShell(rec stream.Record, v *shellResult) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
