// Copyright (c) 2025 Velocli
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"strings"

	"velocli/api/verrors"

	"github.com/pterm/pterm"
)

// FormatChannelError formats a terminal query error in a user-friendly way.
func FormatChannelError(err error) string {
	var builder strings.Builder

	builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Query Failed"))
	builder.WriteString("\n\n")

	switch verrors.KindOf(err) {
	case verrors.RemoteError:
		builder.WriteString("The server rejected or aborted the query.\n")
		builder.WriteString("Check the VQL text and the server-side query log for details.\n")

	case verrors.Timeout:
		builder.WriteString("No response frame arrived within the configured bound.\n")
		builder.WriteString("The query may still be running server-side; consider a longer --timeout.\n")

	case verrors.ConnectionClosed:
		builder.WriteString("The connection to the server was interrupted mid-stream.\n")
		builder.WriteString("Records received before the interruption were already printed.\n")

	case verrors.OutOfOrderFrame:
		builder.WriteString("The server sent frames that violate the stream protocol.\n")
		builder.WriteString("The channel was closed defensively. Check server and client versions.\n")

	case verrors.Cancelled:
		builder.WriteString("The query was cancelled before completion.\n")

	case verrors.HandshakeFailed:
		builder.WriteString("Certificate validation failed during the TLS handshake.\n")
		builder.WriteString("Verify the credential bundle matches this server's trust anchor.\n")

	case verrors.Unreachable:
		builder.WriteString("The server's API endpoint could not be reached.\n")
		builder.WriteString("Verify server_address in the credential bundle and your network path.\n")

	case verrors.ConnectTimeout:
		builder.WriteString("The connection handshake did not complete in time.\n")

	default:
		builder.WriteString("The query session ended unexpectedly.\n")
	}

	builder.WriteString("\n")
	builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(err.Error())))
	return builder.String()
}
