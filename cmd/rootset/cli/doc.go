// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command framework for the rootset CLI.
//
// A [Command] has a name, an optional [pflag.FlagSet] factory, nested
// [Command.Subcommands] and a Run function. [Command.Execute] routes
// the first positional argument to a subcommand, parses flags and
// prints structured help. Unknown commands and flags get a
// "did you mean" suggestion when one is within edit distance 3.
//
// [JSONOutput] adds a --json flag to a command, [ExitError] reports a
// non-zero exit without an extra error line, and [NewCommandLogger]
// picks a text or JSON slog handler depending on whether stderr is a
// terminal.
package cli
