// Copyright (c) 2025 Velocli
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package logging provides utilities for secure logging and error presentation.
// It includes functions for masking key material in diagnostics, constructing
// the CLI's structured logger, and formatting connection and channel errors
// for user-friendly display without exposing credentials.
package logging

import (
	"regexp"
	"strings"
)

var (
	rePEMBlock = regexp.MustCompile(`(?s)-----BEGIN [A-Z0-9 ]+-----.*?-----END [A-Z0-9 ]+-----`)
	reToken    = regexp.MustCompile(`(?i)(token=|bearer\s+)([A-Za-z0-9._-]+)`)
	reKeyField = regexp.MustCompile(`(?i)(client_key:\s*)(\S[^\n]*)`)
)

// Mask replaces key material in the input string with placeholders. Whole
// PEM blocks collapse to a single marker so a mis-logged credential bundle
// never leaks a private key.
func Mask(s string) string {
	out := s
	out = rePEMBlock.ReplaceAllString(out, "-----MASKED-----")
	out = reToken.ReplaceAllString(out, "$1***")
	out = reKeyField.ReplaceAllString(out, "$1***")
	for _, k := range []string{"VELOCLI_BUNDLE", "VELOCLI_API_CONFIG"} {
		out = strings.ReplaceAll(out, k+"=", k+"=***")
	}
	return out
}
