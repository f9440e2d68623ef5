// Copyright (c) 2025 Velocli
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"velocli/api/stream"
	"velocli/internal/logging"
	"velocli/internal/render"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	queryOrg         string
	queryEnv         []string
	queryMaxRows     uint64
	queryTimeout     time.Duration
	queryDialTimeout time.Duration
	queryFormat      string
)

var queryCmd = &cobra.Command{
	Use:   "query [flags] VQL",
	Short: "Run a VQL query and stream its results",
	Long: `Runs one VQL query against the server and streams records to stdout as
they arrive. Server-side log lines for the query go to stderr. Interrupting
with Ctrl-C cancels the query on the server before exiting.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryOrg, "org", "", "Organization ID to run the query under")
	queryCmd.Flags().StringArrayVar(&queryEnv, "env", nil, "Query parameter as KEY=VALUE (repeatable)")
	queryCmd.Flags().Uint64Var(&queryMaxRows, "max-rows", 0, "Maximum rows per response batch (0 = server default)")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 0, "Abort if no response frame arrives within this duration (0 = no bound)")
	queryCmd.Flags().DurationVar(&queryDialTimeout, "dial-timeout", 0, "Bound for connecting and the TLS handshake")
	queryCmd.Flags().StringVar(&queryFormat, "format", "jsonl", "Output format: jsonl, json or table")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	env, err := parseEnvPairs(queryEnv)
	if err != nil {
		return err
	}
	if queryFormat != "jsonl" && queryFormat != "json" && queryFormat != "table" {
		return fmt.Errorf("unknown --format %q (expected jsonl, json or table)", queryFormat)
	}

	ctx, stopSig := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stopSig()

	progress := render.NewProgress()
	logger := logging.NewLogger(os.Stderr, verbose).Hook(render.LogCounter{P: progress})

	sess, _, err := openSession(ctx, logger, queryDialTimeout, queryTimeout, queryOrg, queryMaxRows)
	if err != nil {
		return err
	}
	defer sess.Close()

	rows, err := sess.Query(ctx, args[0], env)
	if err != nil {
		return fmt.Errorf("%s", logging.PresentError("submit query", err))
	}

	stopStatus := func() {}
	if isTerminal(os.Stderr) {
		stopStatus = render.StartStatusLine(os.Stderr, progress, 120*time.Millisecond)
	}

	var table []stream.Record
	enc := json.NewEncoder(os.Stdout)
	if queryFormat == "json" {
		enc.SetIndent("", "  ")
	}
	for {
		rec, err := rows.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			stopStatus()
			fmt.Fprintln(os.Stderr, logging.FormatChannelError(err))
			return fmt.Errorf("query failed after %d rows", progress.Rows())
		}
		progress.AddRow()
		if queryFormat == "table" {
			table = append(table, rec)
			continue
		}
		if err := enc.Encode(rec); err != nil {
			stopStatus()
			rows.Cancel()
			return err
		}
	}
	stopStatus()

	if queryFormat == "table" {
		printRecordTable(os.Stdout, table)
	}
	logger.Info().Int("rows", progress.Rows()).Int("server_logs", progress.Logs()).Msg("query complete")
	return nil
}

// parseEnvPairs splits repeated KEY=VALUE flags into a parameter map.
// Duplicate keys keep the last value.
func parseEnvPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --env %q: expected KEY=VALUE", p)
		}
		env[k] = v
	}
	return env, nil
}

// printRecordTable renders buffered records as a pterm table. Columns are
// the union of keys across all records, sorted for a stable layout.
func printRecordTable(w io.Writer, recs []stream.Record) {
	if len(recs) == 0 {
		pterm.Info.Println("no rows")
		return
	}
	colSet := map[string]struct{}{}
	for _, r := range recs {
		for k := range r {
			colSet[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	data := pterm.TableData{cols}
	for _, r := range recs {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = cellString(r[c])
		}
		data = append(data, row)
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(w).Render()
}

// cellString flattens a record value for table display. Nested structures
// render as compact JSON.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64, bool, json.Number:
		return fmt.Sprint(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// isTerminal reports whether f is attached to a character device, so the
// live status line is skipped when stderr is redirected.
func isTerminal(f *os.File) bool {
	st, err := f.Stat()
	if err != nil {
		return false
	}
	return st.Mode()&os.ModeCharDevice != 0
}
