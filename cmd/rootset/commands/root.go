// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/rootset/cmd/rootset/cli"
	"github.com/bureau-foundation/rootset/lib/version"
)

// Stdio carries the streams commands read and write.
type Stdio struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Root returns the rootset command tree.
func Root(stdio Stdio) *cli.Command {
	var showVersion bool

	var root *cli.Command
	root = &cli.Command{
		Name:    "rootset",
		Summary: "Resolve names against an ordered list of directories and archives",
		Description: `Resolve resource names against an ordered list of roots.

A root is a directory or an archive (zip, jar, tar, tar.gz, tar.zst,
tar.lz4). The first root that contains a name wins. Root contents are
indexed on first use and the index is kept on disk, so later runs
against unchanged roots skip the walk.

Roots and options come from a YAML or JSONC file named by --config or
ROOTSET_CONFIG. Flags override the file.`,
		HelpOutput: stdio.Err,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("rootset", pflag.ContinueOnError)
			flagSet.BoolVar(&showVersion, "version", false, "print version information")
			return flagSet
		},
		Subcommands: []*cli.Command{
			resolveCommand(stdio),
			catCommand(stdio),
			listCommand(stdio),
			indexCommand(stdio),
			statsCommand(stdio),
			watchCommand(stdio),
		},
		Run: func(args []string) error {
			if showVersion {
				fmt.Fprintf(stdio.Out, "rootset %s\n", version.Info())
				return nil
			}
			root.PrintHelp(stdio.Err)
			return errors.New("command required")
		},
	}
	return root
}
