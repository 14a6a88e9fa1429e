// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/rootset/cmd/rootset/cli"
	"github.com/bureau-foundation/rootset/lib/watch"
)

type watchParams struct {
	session  sessionFlags
	debounce time.Duration
}

func watchCommand(stdio Stdio) *cli.Command {
	var params watchParams

	return &cli.Command{
		Name:    "watch",
		Summary: "Resolve names from stdin while watching directory roots",
		Description: `Read names from stdin, one per line, and print the root providing each
as "name<TAB>origin", or "name<TAB>-" when nothing does.

Directory roots are watched for changes. A change under a root makes its
index re-check the root before the next lookup, so a long-running
session sees files added or removed by a build. Archive roots are
re-checked by their stamp as usual.`,
		Usage: "rootset watch [flags] < names",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			params.session.addFlags(flagSet)
			flagSet.DurationVar(&params.debounce, "debounce", watch.DefaultDebounce, "delay between a change and the index re-check")
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

			watcher, err := watch.New(watch.Options{Debounce: params.debounce, Logger: s.logger})
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, watcher.Close()) }()

			if err := s.resolver.WatchRoots(watcher); err != nil {
				return err
			}

			scanner := bufio.NewScanner(stdio.In)
			for scanner.Scan() {
				name := strings.TrimSpace(scanner.Text())
				if name == "" {
					continue
				}
				resource, found, err := s.resolver.Resolve(name)
				switch {
				case err != nil:
					s.logger.Warn("resolve failed", "name", name, "error", err)
					fmt.Fprintf(stdio.Out, "%s\t-\n", name)
				case !found:
					fmt.Fprintf(stdio.Out, "%s\t-\n", name)
				default:
					fmt.Fprintf(stdio.Out, "%s\t%s\n", name, resource.Origin())
				}
			}
			return scanner.Err()
		},
	}
}
