// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/rootset/cmd/rootset/cli"
	"github.com/bureau-foundation/rootset/lib/resolver"
)

type resolveParams struct {
	session sessionFlags
	cli.JSONOutput
	all bool
}

// resolution is the outcome for one requested name.
type resolution struct {
	Name    string  `json:"name"`
	Found   bool    `json:"found"`
	Matches []match `json:"matches"`
}

// match is one resource claiming a name.
type match struct {
	Origin  string `json:"origin"`
	Ordinal int    `json:"ordinal"`
	Kind    string `json:"kind"`
}

func matchOf(resource *resolver.Resource) match {
	if resource.Root == nil {
		return match{Origin: resource.Origin(), Ordinal: -1, Kind: resolver.BootstrapOrigin}
	}
	return match{
		Origin:  resource.Origin(),
		Ordinal: resource.Root.Ordinal(),
		Kind:    resource.Root.Kind().String(),
	}
}

func resolveCommand(stdio Stdio) *cli.Command {
	var params resolveParams

	return &cli.Command{
		Name:    "resolve",
		Summary: "Show which root provides a name",
		Description: `Resolve each name and print the root that provides it.

The first root containing a name wins; with --all every root containing
it is listed in priority order, followed by the bootstrap location.
Exits 1 when any name is not found.`,
		Usage: "rootset resolve [flags] <name>...",
		Examples: []cli.Example{
			{
				Description: "Find the root providing a class",
				Command:     "rootset resolve --root build/classes --root lib/dep.jar com/example/Foo.class",
			},
			{
				Description: "List every root shadowing a resource",
				Command:     "rootset resolve --all META-INF/MANIFEST.MF",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("resolve", pflag.ContinueOnError)
			params.session.addFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			flagSet.BoolVarP(&params.all, "all", "a", false, "list every root containing the name")
			return flagSet
		},
		Run: func(args []string) (err error) {
			if len(args) == 0 {
				return errors.New("at least one name is required")
			}
			s, err := params.session.open(stdio.Err)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, s.Close()) }()

			results := make([]resolution, 0, len(args))
			missing := 0
			for _, name := range args {
				result, err := resolveName(s.resolver, name, params.all)
				if err != nil {
					return err
				}
				if !result.Found {
					missing++
				}
				results = append(results, result)
			}

			if done, err := params.EmitJSON(stdio.Out, results); done {
				if err == nil && missing > 0 {
					err = &cli.ExitError{Code: 1}
				}
				return err
			}

			for _, result := range results {
				if !result.Found {
					fmt.Fprintf(stdio.Err, "%s: not found\n", result.Name)
					continue
				}
				origins := make([]string, len(result.Matches))
				for i, m := range result.Matches {
					origins[i] = m.Origin
				}
				fmt.Fprintf(stdio.Out, "%s\t%s\n", result.Name, strings.Join(origins, "\t"))
			}
			if missing > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func resolveName(r *resolver.Resolver, name string, all bool) (resolution, error) {
	result := resolution{Name: name, Matches: []match{}}
	if all {
		resources, err := r.ResolveAll(name)
		if err != nil {
			return result, err
		}
		for _, resource := range resources {
			result.Matches = append(result.Matches, matchOf(resource))
		}
		result.Found = len(resources) > 0
		return result, nil
	}

	resource, found, err := r.Resolve(name)
	if err != nil {
		return result, err
	}
	if found {
		result.Found = true
		result.Matches = append(result.Matches, matchOf(resource))
	}
	return result, nil
}
