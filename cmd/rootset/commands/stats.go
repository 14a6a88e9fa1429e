// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/rootset/cmd/rootset/cli"
	"github.com/bureau-foundation/rootset/lib/resolver"
)

type statsParams struct {
	session sessionFlags
	cli.JSONOutput
}

// statsReport is the JSON form of resolver.Stats.
type statsReport struct {
	Fingerprint     string      `json:"fingerprint"`
	Pooled          bool        `json:"pooled"`
	NegativeHits    int64       `json:"negative_hits"`
	NegativeEntries int         `json:"negative_entries"`
	Roots           []rootStats `json:"roots"`
}

type rootStats struct {
	Ordinal      int    `json:"ordinal"`
	Root         string `json:"root"`
	Cached       bool   `json:"cached"`
	Degraded     bool   `json:"degraded"`
	Generation   uint64 `json:"generation"`
	Names        int    `json:"names"`
	Enumerations int64  `json:"enumerations"`
	Hydrations   int64  `json:"hydrations"`
	Probes       int64  `json:"probes"`
	StampChecks  int64  `json:"stamp_checks"`
}

func newStatsReport(r *resolver.Resolver) statsReport {
	stats := r.Stats()
	report := statsReport{
		Fingerprint:     stats.Fingerprint.String(),
		Pooled:          stats.Pooled,
		NegativeHits:    stats.Set.NegativeHits,
		NegativeEntries: stats.Set.NegativeEntries,
		Roots:           make([]rootStats, len(stats.Set.Indexers)),
	}
	for i, rt := range r.Roots() {
		x := stats.Set.Indexers[i]
		report.Roots[i] = rootStats{
			Ordinal:      rt.Ordinal(),
			Root:         string(rt.Identity()),
			Cached:       x.Cached,
			Degraded:     x.Degraded,
			Generation:   x.Generation,
			Names:        x.Names,
			Enumerations: x.Enumerations,
			Hydrations:   x.Hydrations,
			Probes:       x.Probes,
			StampChecks:  x.StampChecks,
		}
	}
	return report
}

func statsCommand(stdio Stdio) *cli.Command {
	var params statsParams

	return &cli.Command{
		Name:    "stats",
		Summary: "Show index counters per root",
		Description: `Resolve the given names, if any, then show the index counters of every
root: generation, indexed names, walks, loads from the persistent
index and direct probes of uncached roots.`,
		Usage: "rootset stats [flags] [name...]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("stats", pflag.ContinueOnError)
			params.session.addFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) (err error) {
			s, err := params.session.open(stdio.Err)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, s.Close()) }()

			for _, name := range args {
				if _, _, err := s.resolver.Resolve(name); err != nil {
					return err
				}
			}

			report := newStatsReport(s.resolver)
			if done, err := params.EmitJSON(stdio.Out, report); done {
				return err
			}
			renderStats(stdio.Out, report)
			return nil
		},
	}
}

func renderStats(w io.Writer, report statsReport) {
	renderer := lipgloss.NewRenderer(w)
	labelStyle := renderer.NewStyle().Bold(true)

	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("fingerprint:"), report.Fingerprint)
	fmt.Fprintf(w, "%s %t\n", labelStyle.Render("pooled:"), report.Pooled)
	fmt.Fprintf(w, "%s %d hits, %d entries\n\n", labelStyle.Render("negative cache:"),
		report.NegativeHits, report.NegativeEntries)

	headers := []string{"#", "ROOT", "STATE", "GEN", "NAMES", "WALKS", "LOADS", "PROBES", "CHECKS"}
	rows := make([][]string, len(report.Roots))
	for i, r := range report.Roots {
		state := "cached"
		switch {
		case !r.Cached:
			state = "uncached"
		case r.Degraded:
			state = "degraded"
		}
		rows[i] = []string{
			strconv.Itoa(r.Ordinal),
			r.Root,
			state,
			strconv.FormatUint(r.Generation, 10),
			strconv.Itoa(r.Names),
			strconv.FormatInt(r.Enumerations, 10),
			strconv.FormatInt(r.Hydrations, 10),
			strconv.FormatInt(r.Probes, 10),
			strconv.FormatInt(r.StampChecks, 10),
		}
	}
	fmt.Fprint(w, renderTable(renderer, headers, rows))
}

// renderTable lays out rows in columns sized to their widest cell.
// The root column is left-aligned; the others are right-aligned
// except the state column.
func renderTable(renderer *lipgloss.Renderer, headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = lipgloss.Width(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	headerStyle := renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	stateStyles := map[string]lipgloss.Style{
		"cached":   renderer.NewStyle().Foreground(lipgloss.Color("2")),
		"uncached": renderer.NewStyle().Foreground(lipgloss.Color("8")),
		"degraded": renderer.NewStyle().Foreground(lipgloss.Color("1")),
	}

	cellStyle := func(column int) lipgloss.Style {
		style := renderer.NewStyle().Width(widths[column])
		if column != 1 && column != 2 {
			style = style.Align(lipgloss.Right)
		}
		return style
	}

	var builder strings.Builder
	line := func(cells []string, styleOf func(column int, cell string) lipgloss.Style) {
		rendered := make([]string, len(cells))
		for i, cell := range cells {
			rendered[i] = styleOf(i, cell).Render(cell)
		}
		builder.WriteString(strings.TrimRight(strings.Join(rendered, "  "), " "))
		builder.WriteByte('\n')
	}

	line(headers, func(column int, _ string) lipgloss.Style {
		return cellStyle(column).Inherit(headerStyle)
	})
	for _, row := range rows {
		line(row, func(column int, cell string) lipgloss.Style {
			if style, ok := stateStyles[cell]; ok && column == 2 {
				return cellStyle(column).Inherit(style)
			}
			return cellStyle(column)
		})
	}
	return builder.String()
}
