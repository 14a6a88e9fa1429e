// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/rootset/cmd/rootset/cli"
)

func catCommand(stdio Stdio) *cli.Command {
	var flags sessionFlags

	return &cli.Command{
		Name:    "cat",
		Summary: "Write a resource's bytes to stdout",
		Description: `Resolve each name and write the winning resource's bytes to stdout.

A name that nothing provides, or whose root fails to read, is an error.
The next root is not tried after a read failure.`,
		Usage: "rootset cat [flags] <name>...",
		Examples: []cli.Example{
			{
				Description: "Print a manifest from the first root that has one",
				Command:     "rootset cat META-INF/MANIFEST.MF",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("cat", pflag.ContinueOnError)
			flags.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) (err error) {
			if len(args) == 0 {
				return errors.New("at least one name is required")
			}
			s, err := flags.open(stdio.Err)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, s.Close()) }()

			for _, name := range args {
				content, resource, err := s.resolver.ReadFile(name)
				if err != nil {
					return err
				}
				s.logger.Debug("read resource", "name", resource.Name, "origin", resource.Origin(), "bytes", len(content))
				if _, err := stdio.Out.Write(content); err != nil {
					return fmt.Errorf("writing %s: %w", name, err)
				}
			}
			return nil
		},
	}
}
