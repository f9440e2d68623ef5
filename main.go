// Copyright (c) 2025 Velocli
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main is the entry point for the velocli application, a client for
// the Velociraptor gRPC API. It authenticates with a credential bundle and
// streams VQL query results back from the server.
package main

import (
	"velocli/cmd"
)

func main() {
	cmd.Execute()
}
