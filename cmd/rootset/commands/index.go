// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/rootset/cmd/rootset/cli"
	"github.com/bureau-foundation/rootset/lib/codec"
	"github.com/bureau-foundation/rootset/lib/persistindex"
	"github.com/bureau-foundation/rootset/lib/root"
)

func indexCommand(stdio Stdio) *cli.Command {
	return &cli.Command{
		Name:    "index",
		Summary: "Build and inspect persistent root indexes",
		Description: `Build and inspect the on-disk indexes that let later runs skip
walking unchanged roots.`,
		Subcommands: []*cli.Command{
			indexFlushCommand(stdio),
			indexDumpCommand(stdio),
		},
	}
}

type indexFlushParams struct {
	session sessionFlags
	cli.JSONOutput
}

// flushedRoot reports one root after a flush.
type flushedRoot struct {
	Root       string `json:"root"`
	Cached     bool   `json:"cached"`
	Degraded   bool   `json:"degraded"`
	Generation uint64 `json:"generation"`
	Names      int    `json:"names"`
	Enumerated bool   `json:"enumerated"`
}

func indexFlushCommand(stdio Stdio) *cli.Command {
	var params indexFlushParams

	return &cli.Command{
		Name:    "flush",
		Summary: "Index every root and save the indexes",
		Description: `Index every cacheable root and save changed indexes to the
persistent store. Roots whose saved index is still current are loaded
rather than walked.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("flush", pflag.ContinueOnError)
			params.session.addFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) (err error) {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			params.session.preload = true
			s, err := params.session.open(stdio.Err)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, s.Close()) }()

			if s.store == nil {
				return errors.New("persistent index is disabled")
			}
			if err := s.resolver.Flush(); err != nil {
				return err
			}

			stats := s.resolver.Stats()
			report := make([]flushedRoot, len(stats.Set.Indexers))
			for i, r := range s.resolver.Roots() {
				indexer := stats.Set.Indexers[i]
				report[i] = flushedRoot{
					Root:       string(r.Identity()),
					Cached:     indexer.Cached,
					Degraded:   indexer.Degraded,
					Generation: indexer.Generation,
					Names:      indexer.Names,
					Enumerated: indexer.Enumerations > 0,
				}
			}

			if done, err := params.EmitJSON(stdio.Out, report); done {
				return err
			}
			for _, r := range report {
				state := "loaded"
				switch {
				case !r.Cached:
					state = "uncached"
				case r.Degraded:
					state = "degraded"
				case r.Enumerated:
					state = "indexed"
				}
				fmt.Fprintf(stdio.Out, "%-8s %6d  %s\n", state, r.Names, r.Root)
			}
			return nil
		},
	}
}

type indexDumpParams struct {
	session sessionFlags
	cli.JSONOutput
	names    bool
	diagnose bool
}

// dumpedIndex describes the saved snapshot of one root.
type dumpedIndex struct {
	Root    string    `json:"root"`
	Present bool      `json:"present"`
	Stamp   string    `json:"stamp,omitempty"`
	SavedAt time.Time `json:"saved_at,omitzero"`
	Dirs    int       `json:"dirs"`
	Records int       `json:"records"`
	Names   []string  `json:"names,omitempty"`

	// Diagnostic is the snapshot in CBOR diagnostic notation.
	Diagnostic string `json:"diagnostic,omitempty"`
}

func indexDumpCommand(stdio Stdio) *cli.Command {
	var params indexDumpParams

	return &cli.Command{
		Name:    "dump",
		Summary: "Show the saved index of each root",
		Description: `Show the saved index of each configured root, or of the roots whose
location is given as an argument.`,
		Usage: "rootset index dump [flags] [location...]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("dump", pflag.ContinueOnError)
			params.session.addFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			flagSet.BoolVar(&params.names, "names", false, "include every saved name")
			flagSet.BoolVar(&params.diagnose, "diagnose", false, "print each snapshot in CBOR diagnostic notation")
			return flagSet
		},
		Run: func(args []string) (err error) {
			s, err := params.session.open(stdio.Err)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, s.Close()) }()

			if s.store == nil {
				return errors.New("persistent index is disabled")
			}

			roots, err := selectRoots(s.resolver.Roots(), args)
			if err != nil {
				return err
			}

			report := make([]dumpedIndex, 0, len(roots))
			for _, r := range roots {
				snapshot, err := s.store.Load(r.Identity())
				if err != nil {
					return err
				}
				entry := dumpedIndex{Root: string(r.Identity())}
				if snapshot != nil {
					entry.Present = true
					entry.Stamp = fmt.Sprintf("%016x", uint64(snapshot.Stamp))
					entry.SavedAt = snapshot.SavedAt
					entry.Dirs = len(snapshot.Dirs)
					entry.Records = len(snapshot.Records)
					if params.names {
						for _, record := range snapshot.Records {
							entry.Names = append(entry.Names, record.Name)
						}
					}
					if params.diagnose {
						if entry.Diagnostic, err = diagnose(snapshot); err != nil {
							return err
						}
					}
				}
				report = append(report, entry)
			}

			if done, err := params.EmitJSON(stdio.Out, report); done {
				return err
			}
			for _, entry := range report {
				if !entry.Present {
					fmt.Fprintf(stdio.Out, "%s: no saved index\n", entry.Root)
					continue
				}
				fmt.Fprintf(stdio.Out, "%s: stamp %s, %d dirs, %d names, saved %s\n",
					entry.Root, entry.Stamp, entry.Dirs, entry.Records, entry.SavedAt.Format(time.RFC3339))
				for _, name := range entry.Names {
					fmt.Fprintf(stdio.Out, "  %s\n", name)
				}
				if entry.Diagnostic != "" {
					fmt.Fprintf(stdio.Out, "  %s\n", entry.Diagnostic)
				}
			}
			return nil
		},
	}
}

func diagnose(snapshot *persistindex.Snapshot) (string, error) {
	data, err := codec.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	return codec.Diagnose(data)
}

// selectRoots returns the roots whose location or identity matches one
// of selectors, or every root when selectors is empty.
func selectRoots(roots []*root.Root, selectors []string) ([]*root.Root, error) {
	if len(selectors) == 0 {
		return roots, nil
	}
	var selected []*root.Root
	for _, selector := range selectors {
		found := false
		for _, r := range roots {
			if selector == r.Location() || selector == string(r.Identity()) {
				selected = append(selected, r)
				found = true
				break
			}
		}
		if !found {
			probe, err := root.New(0, selector, root.Options{})
			if err != nil {
				return nil, err
			}
			for _, r := range roots {
				if probe.Identity() == r.Identity() {
					selected = append(selected, r)
					found = true
					break
				}
			}
		}
		if !found {
			return nil, fmt.Errorf("%s is not a configured root", selector)
		}
	}
	return selected, nil
}
