// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Rootset resolves resource names against an ordered list of
// directories and archives. See "rootset --help".
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bureau-foundation/rootset/cmd/rootset/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that already reported the outcome return an
		// ExitError; print nothing more for those.
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	stdio := commands.Stdio{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
	return commands.Root(stdio).Execute(os.Args[1:])
}
