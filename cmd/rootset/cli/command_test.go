// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "rootset",
		Subcommands: []*Command{
			{Name: "resolve", Run: func(args []string) error { called = "resolve"; return nil }},
			{Name: "list", Run: func(args []string) error { called = "list"; return nil }},
		},
	}

	if err := root.Execute([]string{"list"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "list" {
		t.Errorf("dispatched to %q, want %q", called, "list")
	}
}

func TestCommand_Execute_NestedSubcommands(t *testing.T) {
	var receivedArgs []string

	root := &Command{
		Name: "rootset",
		Subcommands: []*Command{
			{
				Name: "index",
				Subcommands: []*Command{
					{Name: "dump", Run: func(args []string) error { receivedArgs = args; return nil }},
				},
			},
		},
	}

	if err := root.Execute([]string{"index", "dump", "/work/lib.jar"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "/work/lib.jar" {
		t.Errorf("args = %v, want [/work/lib.jar]", receivedArgs)
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var roots []string
	var jsonOutput JSONOutput
	var positional []string

	command := &Command{
		Name: "resolve",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("resolve", pflag.ContinueOnError)
			flagSet.StringArrayVar(&roots, "root", nil, "root")
			jsonOutput.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			positional = args
			return nil
		},
	}

	err := command.Execute([]string{"--root", "/a", "--root=/b.jar", "--json", "com/example/Foo.class"})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(roots) != 2 || roots[0] != "/a" || roots[1] != "/b.jar" {
		t.Errorf("roots = %v, want [/a /b.jar]", roots)
	}
	if !jsonOutput.OutputJSON {
		t.Error("--json not set")
	}
	if len(positional) != 1 || positional[0] != "com/example/Foo.class" {
		t.Errorf("positional = %v", positional)
	}
}

func TestCommand_Execute_UnknownCommandSuggests(t *testing.T) {
	root := &Command{
		Name: "rootset",
		Subcommands: []*Command{
			{Name: "resolve", Run: func([]string) error { return nil }},
			{Name: "stats", Run: func([]string) error { return nil }},
		},
	}

	err := root.Execute([]string{"reslove"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), `did you mean "resolve"`) {
		t.Errorf("error = %q, want a suggestion for resolve", err.Error())
	}

	err = root.Execute([]string{"zzzzzzzz"})
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("expected error without suggestion, got %v", err)
	}
}

func TestCommand_Execute_UnknownFlagSuggests(t *testing.T) {
	var preload bool
	command := &Command{
		Name: "list",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flagSet.BoolVar(&preload, "preload", false, "")
			return flagSet
		},
		Run: func([]string) error { return nil },
	}

	err := command.Execute([]string{"--prelaod"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "did you mean --preload") {
		t.Errorf("error = %q, want a suggestion for --preload", err.Error())
	}
}

func TestCommand_Execute_SubcommandRequired(t *testing.T) {
	var help bytes.Buffer
	root := &Command{
		Name:        "index",
		HelpOutput:  &help,
		Subcommands: []*Command{{Name: "flush", Summary: "Write every index"}},
	}

	err := root.Execute(nil)
	if err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("Execute(nil) = %v, want subcommand required", err)
	}
	if !strings.Contains(help.String(), "flush") {
		t.Errorf("help does not list subcommands:\n%s", help.String())
	}
}

func TestCommand_Execute_RunFallbackWithSubcommands(t *testing.T) {
	var showVersion, ran bool
	root := &Command{
		Name:        "rootset",
		Subcommands: []*Command{{Name: "list", Run: func([]string) error { return nil }}},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("rootset", pflag.ContinueOnError)
			flagSet.BoolVar(&showVersion, "version", false, "")
			return flagSet
		},
		Run: func(args []string) error {
			ran = true
			return nil
		},
	}
	if err := root.Execute([]string{"--version"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !ran || !showVersion {
		t.Errorf("Run fallback not taken: ran=%v version=%v", ran, showVersion)
	}

	if err := root.Execute([]string{"lsit"}); err == nil || !strings.Contains(err.Error(), `did you mean "list"`) {
		t.Errorf("positional argument did not get a suggestion: %v", err)
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	var help bytes.Buffer
	root := &Command{
		Name:       "rootset",
		Summary:    "Resolve names against ordered roots",
		HelpOutput: &help,
		Subcommands: []*Command{
			{
				Name:    "cat",
				Summary: "Print a resource",
				Examples: []Example{
					{Description: "Print a class file", Command: "rootset cat com/example/Foo.class"},
				},
				Flags: func() *pflag.FlagSet {
					flagSet := pflag.NewFlagSet("cat", pflag.ContinueOnError)
					flagSet.String("config", "", "configuration file")
					return flagSet
				},
			},
		},
	}

	if err := root.Execute([]string{"cat", "--help"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	output := help.String()
	for _, want := range []string{"Print a resource", "Usage:\n  rootset cat [flags]", "--config", "# Print a class file"} {
		if !strings.Contains(output, want) {
			t.Errorf("help missing %q:\n%s", want, output)
		}
	}
}

func TestExitError(t *testing.T) {
	var err error = &ExitError{Code: 1}
	var coder interface{ ExitCode() int }
	if !errors.As(err, &coder) || coder.ExitCode() != 1 {
		t.Errorf("ExitError does not report its code")
	}
}

func TestEmitJSON(t *testing.T) {
	var output bytes.Buffer

	quiet := JSONOutput{}
	if done, err := quiet.EmitJSON(&output, []string{"x"}); done || err != nil {
		t.Errorf("EmitJSON without --json = %v, %v", done, err)
	}

	loud := JSONOutput{OutputJSON: true}
	var names []string
	if done, err := loud.EmitJSON(&output, names); !done || err != nil {
		t.Fatalf("EmitJSON = %v, %v", done, err)
	}
	if got := strings.TrimSpace(output.String()); got != "[]" {
		t.Errorf("nil slice encoded as %q, want []", got)
	}
}

func TestNewCommandLogger_NonTerminalIsJSON(t *testing.T) {
	var output bytes.Buffer
	logger := NewCommandLogger(&output, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("shown", "root", "/work/out")

	if strings.Contains(output.String(), "hidden") {
		t.Error("debug record written at info level")
	}
	if !strings.HasPrefix(output.String(), "{") || !strings.Contains(output.String(), `"root":"/work/out"`) {
		t.Errorf("expected a JSON record, got %q", output.String())
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"resolve", "resolve", 0},
		{"reslove", "resolve", 2},
		{"stat", "stats", 1},
		{"kitten", "sitting", 3},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}
