// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/rootset/cmd/rootset/cli"
)

type listParams struct {
	session sessionFlags
	cli.JSONOutput
	prefix string
}

func listCommand(stdio Stdio) *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List every name the roots provide",
		Description: `List every name provided by the roots, in priority order of first
occurrence. A name shadowed by an earlier root is listed once.
Bootstrap names are not listed.`,
		Examples: []cli.Example{
			{
				Description: "List the classes of one package",
				Command:     "rootset list --prefix com/example/",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			params.session.addFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			flagSet.StringVar(&params.prefix, "prefix", "", "only list names starting with this prefix")
			return flagSet
		},
		Run: func(args []string) (err error) {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			s, err := params.session.open(stdio.Err)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, s.Close()) }()

			names, err := s.resolver.ListNames()
			if err != nil {
				return err
			}
			if params.prefix != "" {
				filtered := names[:0:0]
				for _, name := range names {
					if strings.HasPrefix(name, params.prefix) {
						filtered = append(filtered, name)
					}
				}
				names = filtered
			}

			if done, err := params.EmitJSON(stdio.Out, names); done {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(stdio.Out, name)
			}
			return nil
		},
	}
}
